package integration

import (
	"errors"
	"fmt"

	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/model"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/repository"
	"gorm.io/gorm"
)

// ScheduleValidation 课表校验结果
type ScheduleValidation struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// ScheduleValidator 课表冲突校验器
// 状态引擎只消费这个窄接口,校验细节属于选课域
type ScheduleValidator interface {
	Validate(studentID string, sourceGroupID string, targetGroupID string) (*ScheduleValidation, error)
	GetGroupSchedule(groupID string) ([]*model.GroupScheduleModel, error)
}

// scheduleValidator 课表冲突校验器实现
type scheduleValidator struct {
	groupRepo      repository.GroupRepository
	enrollmentRepo repository.EnrollmentRepository
}

// NewScheduleValidator 创建课表校验器
func NewScheduleValidator(groupRepo repository.GroupRepository, enrollmentRepo repository.EnrollmentRepository) ScheduleValidator {
	return &scheduleValidator{
		groupRepo:      groupRepo,
		enrollmentRepo: enrollmentRepo,
	}
}

// Validate 校验调课后课表是否仍然可行
// 目标班组的课表与学生当前选课(源班组除外,调课后会退出)逐条比对
func (v *scheduleValidator) Validate(studentID string, sourceGroupID string, targetGroupID string) (*ScheduleValidation, error) {
	result := &ScheduleValidation{
		IsValid:  true,
		Errors:   []string{},
		Warnings: []string{},
	}

	targetGroup, err := v.groupRepo.FindByID(targetGroupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			result.IsValid = false
			result.Errors = append(result.Errors, fmt.Sprintf("target group %s does not exist", targetGroupID))
			return result, nil
		}
		return nil, err
	}
	if !targetGroup.HasCapacity() {
		result.Warnings = append(result.Warnings, fmt.Sprintf("target group %s is currently full (%d/%d)",
			targetGroupID, targetGroup.Enrolled, targetGroup.Capacity))
	}

	targetSchedule, err := v.groupRepo.FindSchedules(targetGroupID)
	if err != nil {
		return nil, err
	}

	enrollments, err := v.enrollmentRepo.FindActiveByStudent(studentID)
	if err != nil {
		return nil, err
	}

	for _, enrollment := range enrollments {
		// 源班组在调课后会被退掉,不参与冲突判断
		if enrollment.GroupID == sourceGroupID || enrollment.GroupID == targetGroupID {
			continue
		}
		current, err := v.groupRepo.FindSchedules(enrollment.GroupID)
		if err != nil {
			return nil, err
		}
		for _, slot := range current {
			for _, candidate := range targetSchedule {
				if slot.OverlapsWith(candidate) {
					result.IsValid = false
					result.Errors = append(result.Errors, fmt.Sprintf(
						"schedule conflict with group %s on day %d (%s-%s)",
						enrollment.GroupID, slot.DayOfWeek,
						formatMinutes(candidate.StartMinutes), formatMinutes(candidate.EndMinutes)))
				}
			}
		}
	}

	return result, nil
}

// GetGroupSchedule 返回班组课表,供展示使用
func (v *scheduleValidator) GetGroupSchedule(groupID string) ([]*model.GroupScheduleModel, error) {
	return v.groupRepo.FindSchedules(groupID)
}

// formatMinutes 把零点起的分钟数格式化为 HH:MM
func formatMinutes(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
