/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
// @title           DOSW 调课申请 API
// @version         1.0
// @description     学生调课申请(subject/group change request)状态引擎 API 服务
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token from Keycloak
package main

import "github.com/Nella1414/Back-DOSW-Proyecto1-sub001/cmd"

func main() {
	cmd.Execute()
}
