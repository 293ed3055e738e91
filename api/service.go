package api

import (
	"fmt"

	"FinReportsSaas/internal/serviceiface"
)

type GatewayService struct {
	config map[string]interface{}
}

func NewGatewayService(cfg map[string]interface{}) serviceiface.Service {
	return &GatewayService{config: cfg}
}

func (s *GatewayService) Name() string {
	return "gateway"
}

func (s *GatewayService) Start() error {
	port := "8081"
	if p, ok := s.config["port"]; ok && p != nil {
		port = fmt.Sprintf("%v", p)
	}
	reportsURL := "http://localhost:7143"
	if u, ok := s.config["reports_url"].(string); ok && u != "" {
		reportsURL = u
	}
	go StartGateway(port, reportsURL)
	return nil
}

func (s *GatewayService) Stop() error {
	return nil
}
