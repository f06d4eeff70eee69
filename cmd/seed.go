/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"errors"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/config"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/database"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/model"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/repository"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/service"
)

// defaultRule 默认转换规则定义
type defaultRule struct {
	from        string
	to          string
	description string
	reason      bool
	permissions []string
}

// 默认状态转换图,部署方可通过 API 增删边
var defaultRules = []defaultRule{
	{model.StatePending, model.StateInReview, "coordinator starts reviewing the request", false, []string{"coordinator"}},
	{model.StateInReview, model.StateWaitingInfo, "coordinator asks the student for more information", true, []string{"coordinator"}},
	{model.StateWaitingInfo, model.StateInReview, "student provided the requested information", false, nil},
	{model.StateInReview, model.StatePending, "review is sent back to the queue", false, []string{"coordinator"}},
	{model.StateInReview, model.StateApproved, "coordinator approves the group change", false, []string{"coordinator"}},
	{model.StateInReview, model.StateRejected, "coordinator rejects the group change", true, []string{"coordinator"}},
	{model.StateWaitingInfo, model.StateRejected, "request is rejected after the information deadline", true, []string{"coordinator"}},
}

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the default transition rules",
	Long: `Seed the database with the default state transition graph.
Existing rules are left untouched, so the command is safe to run repeatedly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 加载配置
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// 2. 连接数据库并迁移
		db, err := database.Connect(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect database: %w", err)
		}
		defer func() {
			sqlDB, _ := db.DB()
			if sqlDB != nil {
				sqlDB.Close()
			}
		}()

		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		// 3. 写入缺失的默认规则
		ruleRepo := repository.NewTransitionRuleRepository(db)
		registry, err := service.NewTransitionRegistry(ruleRepo)
		if err != nil {
			return fmt.Errorf("failed to initialize transition registry: %w", err)
		}

		created := 0
		for _, rule := range defaultRules {
			existing, err := ruleRepo.FindByEdge(rule.from, rule.to)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to look up rule %s -> %s: %w", rule.from, rule.to, err)
			}
			if existing != nil {
				continue
			}

			if _, err := registry.CreateTransition(rule.from, rule.to, &service.CreateTransitionOptions{
				Description:         rule.description,
				RequiresReason:      rule.reason,
				RequiredPermissions: rule.permissions,
			}); err != nil {
				return fmt.Errorf("failed to create rule %s -> %s: %w", rule.from, rule.to, err)
			}
			created++
		}

		log.Printf("Seed completed: %d rules created, %d already present", created, len(defaultRules)-created)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().String("config", "", "Config file path (default: search in current directory or ./config)")
}
