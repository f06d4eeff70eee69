package repository

import (
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/model"
	"gorm.io/gorm"
)

// StudentRepository 学生仓储接口
type StudentRepository interface {
	Save(student *model.StudentModel) error
	FindByID(id string) (*model.StudentModel, error)
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository 创建学生仓储
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) Save(student *model.StudentModel) error {
	return r.db.Save(student).Error
}

func (r *studentRepository) FindByID(id string) (*model.StudentModel, error) {
	var student model.StudentModel
	if err := r.db.Where("id = ?", id).First(&student).Error; err != nil {
		return nil, err
	}
	return &student, nil
}

// ProgramRepository 学术项目仓储接口
type ProgramRepository interface {
	Save(program *model.AcademicProgramModel) error
	FindByID(id string) (*model.AcademicProgramModel, error)
	FindDefault() (*model.AcademicProgramModel, error)
	FindEmergency() (*model.AcademicProgramModel, error)
}

type programRepository struct {
	db *gorm.DB
}

// NewProgramRepository 创建学术项目仓储
func NewProgramRepository(db *gorm.DB) ProgramRepository {
	return &programRepository{db: db}
}

func (r *programRepository) Save(program *model.AcademicProgramModel) error {
	return r.db.Save(program).Error
}

func (r *programRepository) FindByID(id string) (*model.AcademicProgramModel, error) {
	var program model.AcademicProgramModel
	if err := r.db.Where("id = ?", id).First(&program).Error; err != nil {
		return nil, err
	}
	return &program, nil
}

// FindDefault 查找默认回退项目
func (r *programRepository) FindDefault() (*model.AcademicProgramModel, error) {
	var program model.AcademicProgramModel
	if err := r.db.Where("is_default = ? AND active = ?", true, true).First(&program).Error; err != nil {
		return nil, err
	}
	return &program, nil
}

// FindEmergency 查找紧急回退项目
func (r *programRepository) FindEmergency() (*model.AcademicProgramModel, error) {
	var program model.AcademicProgramModel
	if err := r.db.Where("is_emergency = ?", true).First(&program).Error; err != nil {
		return nil, err
	}
	return &program, nil
}

// GroupRepository 班组仓储接口
type GroupRepository interface {
	Save(group *model.SubjectGroupModel) error
	FindByID(id string) (*model.SubjectGroupModel, error)
	FindSchedules(groupID string) ([]*model.GroupScheduleModel, error)
	SaveSchedule(schedule *model.GroupScheduleModel) error
}

type groupRepository struct {
	db *gorm.DB
}

// NewGroupRepository 创建班组仓储
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) Save(group *model.SubjectGroupModel) error {
	return r.db.Save(group).Error
}

func (r *groupRepository) FindByID(id string) (*model.SubjectGroupModel, error) {
	var group model.SubjectGroupModel
	if err := r.db.Where("id = ?", id).First(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// FindSchedules 查找班组的全部课表条目
func (r *groupRepository) FindSchedules(groupID string) ([]*model.GroupScheduleModel, error) {
	var schedules []*model.GroupScheduleModel
	err := r.db.Where("group_id = ?", groupID).
		Order("day_of_week ASC, start_minutes ASC").
		Find(&schedules).Error
	return schedules, err
}

func (r *groupRepository) SaveSchedule(schedule *model.GroupScheduleModel) error {
	if err := schedule.Validate(); err != nil {
		return err
	}
	return r.db.Save(schedule).Error
}

// EnrollmentRepository 选课记录仓储接口
type EnrollmentRepository interface {
	Save(enrollment *model.EnrollmentModel) error
	FindActiveByStudent(studentID string) ([]*model.EnrollmentModel, error)
	FindActiveByStudentAndGroup(studentID string, groupID string) (*model.EnrollmentModel, error)
}

type enrollmentRepository struct {
	db *gorm.DB
}

// NewEnrollmentRepository 创建选课记录仓储
func NewEnrollmentRepository(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (r *enrollmentRepository) Save(enrollment *model.EnrollmentModel) error {
	return r.db.Save(enrollment).Error
}

// FindActiveByStudent 查找学生当前有效的选课记录
func (r *enrollmentRepository) FindActiveByStudent(studentID string) ([]*model.EnrollmentModel, error) {
	var enrollments []*model.EnrollmentModel
	err := r.db.Where("student_id = ? AND status = ?", studentID, model.EnrollmentActive).
		Find(&enrollments).Error
	return enrollments, err
}

// FindActiveByStudentAndGroup 查找学生在某班组的有效选课记录
func (r *enrollmentRepository) FindActiveByStudentAndGroup(studentID string, groupID string) (*model.EnrollmentModel, error) {
	var enrollment model.EnrollmentModel
	err := r.db.Where("student_id = ? AND group_id = ? AND status = ?", studentID, groupID, model.EnrollmentActive).
		First(&enrollment).Error
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}
