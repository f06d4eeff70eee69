package model

import (
	"errors"
	"time"
)

// StudentModel 学生数据模型
type StudentModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)"`
	Code      string    `gorm:"type:varchar(32);not null;uniqueIndex"` // 学号
	Name      string    `gorm:"type:varchar(128);not null"`
	Email     string    `gorm:"type:varchar(128)"`
	ProgramID string    `gorm:"type:varchar(64);index"`
	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName 指定表名
func (StudentModel) TableName() string {
	return "students"
}

// Validate 验证学生模型
func (sm *StudentModel) Validate() error {
	if sm.ID == "" {
		return errors.New("student ID is required")
	}
	if sm.Code == "" {
		return errors.New("student code is required")
	}
	if sm.Name == "" {
		return errors.New("student name is required")
	}
	return nil
}

// AcademicProgramModel 学术项目数据模型
// IsDefault / IsEmergency 标记路由回退链使用的项目
type AcademicProgramModel struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)"`
	Name        string    `gorm:"type:varchar(128);not null"`
	Faculty     string    `gorm:"type:varchar(128)"`
	Active      bool      `gorm:"not null;default:true;index"`
	IsDefault   bool      `gorm:"not null;default:false"` // 默认回退项目
	IsEmergency bool      `gorm:"not null;default:false"` // 紧急回退项目
	Priority    int       `gorm:"type:int;not null;default:5"` // 该项目申请的默认优先级权重
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName 指定表名
func (AcademicProgramModel) TableName() string {
	return "academic_programs"
}

// AcademicPeriodModel 学期数据模型
type AcademicPeriodModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)"`
	Name      string    `gorm:"type:varchar(64);not null"` // 例如 2025-2
	StartDate time.Time `gorm:"not null"`
	EndDate   time.Time `gorm:"not null"`
	Active    bool      `gorm:"not null;default:true;index"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName 指定表名
func (AcademicPeriodModel) TableName() string {
	return "academic_periods"
}

// SubjectGroupModel 课程班组数据模型
type SubjectGroupModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)"`
	SubjectID string    `gorm:"type:varchar(64);not null;index"`
	PeriodID  string    `gorm:"type:varchar(64);not null;index"`
	ProgramID string    `gorm:"type:varchar(64);index"`
	Number    int       `gorm:"type:int;not null"` // 班组号
	Capacity  int       `gorm:"type:int;not null"`
	Enrolled  int       `gorm:"type:int;not null;default:0"` // 当前已选人数
	Professor string    `gorm:"type:varchar(128)"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName 指定表名
func (SubjectGroupModel) TableName() string {
	return "subject_groups"
}

// HasCapacity 判断班组是否还有名额
func (sgm *SubjectGroupModel) HasCapacity() bool {
	return sgm.Enrolled < sgm.Capacity
}

// GroupScheduleModel 班组课表数据模型
// 时间以当天零点起的分钟数表示,避免时区歧义
type GroupScheduleModel struct {
	ID           string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	GroupID      string    `gorm:"type:varchar(64);not null;index" json:"group_id"`
	DayOfWeek    int       `gorm:"type:int;not null" json:"day_of_week"` // 1=周一 ... 7=周日
	StartMinutes int       `gorm:"type:int;not null" json:"start_minutes"`
	EndMinutes   int       `gorm:"type:int;not null" json:"end_minutes"`
	Room         string    `gorm:"type:varchar(64)" json:"room,omitempty"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}

// TableName 指定表名
func (GroupScheduleModel) TableName() string {
	return "group_schedules"
}

// Validate 验证课表模型
func (gsm *GroupScheduleModel) Validate() error {
	if gsm.GroupID == "" {
		return errors.New("group ID is required")
	}
	if gsm.DayOfWeek < 1 || gsm.DayOfWeek > 7 {
		return errors.New("day of week must be between 1 and 7")
	}
	if gsm.StartMinutes < 0 || gsm.EndMinutes <= gsm.StartMinutes {
		return errors.New("schedule end must be after start")
	}
	return nil
}

// OverlapsWith 判断两个课表条目是否时间冲突
func (gsm *GroupScheduleModel) OverlapsWith(other *GroupScheduleModel) bool {
	if gsm.DayOfWeek != other.DayOfWeek {
		return false
	}
	return gsm.StartMinutes < other.EndMinutes && other.StartMinutes < gsm.EndMinutes
}

// 选课状态
const (
	EnrollmentActive  = "ACTIVE"
	EnrollmentDropped = "DROPPED"
)

// EnrollmentModel 选课记录数据模型
type EnrollmentModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)"`
	StudentID string    `gorm:"type:varchar(64);not null;index:idx_enrollment_student_group"`
	GroupID   string    `gorm:"type:varchar(64);not null;index:idx_enrollment_student_group"`
	Status    string    `gorm:"type:varchar(32);not null;default:'ACTIVE';index"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName 指定表名
func (EnrollmentModel) TableName() string {
	return "enrollments"
}
