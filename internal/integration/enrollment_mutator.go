package integration

import (
	"errors"
	"fmt"

	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EnrollmentMutator 选课变更执行器
// 批准调课的真正副作用: 退出源班组、加入目标班组并维护容量计数。
// 对状态引擎来说是一次不透明的外部写入,必须在状态转换提交之前成功。
type EnrollmentMutator interface {
	ApplyGroupChange(studentID string, sourceGroupID string, targetGroupID string) error
}

// enrollmentMutator 选课变更执行器实现
type enrollmentMutator struct {
	db *gorm.DB
}

// NewEnrollmentMutator 创建选课变更执行器
func NewEnrollmentMutator(db *gorm.DB) EnrollmentMutator {
	return &enrollmentMutator{db: db}
}

// ApplyGroupChange 在一个数据库事务内完成换组
func (m *enrollmentMutator) ApplyGroupChange(studentID string, sourceGroupID string, targetGroupID string) error {
	return m.db.Transaction(func(tx *gorm.DB) error {
		// 1. 目标班组必须仍有名额;容量检查和计数自增在同一事务内
		var target model.SubjectGroupModel
		if err := tx.Where("id = ?", targetGroupID).First(&target).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("target group %s not found", targetGroupID)
			}
			return err
		}
		if !target.HasCapacity() {
			return fmt.Errorf("target group %s is full (%d/%d)", targetGroupID, target.Enrolled, target.Capacity)
		}

		// 2. 学生必须在源班组有有效选课
		var enrollment model.EnrollmentModel
		err := tx.Where("student_id = ? AND group_id = ? AND status = ?",
			studentID, sourceGroupID, model.EnrollmentActive).
			First(&enrollment).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("student %s has no active enrollment in group %s", studentID, sourceGroupID)
			}
			return err
		}

		// 3. 源选课标记为退出
		if err := tx.Model(&model.EnrollmentModel{}).
			Where("id = ?", enrollment.ID).
			Update("status", model.EnrollmentDropped).Error; err != nil {
			return fmt.Errorf("failed to drop source enrollment: %w", err)
		}

		// 4. 目标班组新增选课
		newEnrollment := &model.EnrollmentModel{
			ID:        uuid.New().String(),
			StudentID: studentID,
			GroupID:   targetGroupID,
			Status:    model.EnrollmentActive,
		}
		if err := tx.Create(newEnrollment).Error; err != nil {
			return fmt.Errorf("failed to create target enrollment: %w", err)
		}

		// 5. 维护两个班组的容量计数
		if err := tx.Model(&model.SubjectGroupModel{}).
			Where("id = ? AND enrolled > 0", sourceGroupID).
			Update("enrolled", gorm.Expr("enrolled - ?", 1)).Error; err != nil {
			return fmt.Errorf("failed to decrement source group counter: %w", err)
		}
		result := tx.Model(&model.SubjectGroupModel{}).
			Where("id = ? AND enrolled < capacity", targetGroupID).
			Update("enrolled", gorm.Expr("enrolled + ?", 1))
		if result.Error != nil {
			return fmt.Errorf("failed to increment target group counter: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			// 事务内二次检查之后仍未命中,说明并发占满,回滚整个换组
			return fmt.Errorf("target group %s filled up concurrently", targetGroupID)
		}

		return nil
	})
}
