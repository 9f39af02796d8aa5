package main

import (
	"strings"

	"github.com/wollisellis/vireiaestatistica-sub002/pkg/logging"
)

var routeGroups = []struct {
	name   string
	routes []string
}{
	{"Health & Metrics", []string{
		"GET    /api/health                                         - Component health",
		"GET    /api/health/live                                    - Liveness probe",
		"GET    /api/health/ready                                   - Readiness probe",
		"GET    /metrics                                            - Prometheus metrics",
	}},
	{"Progress", []string{
		"POST   /api/v1/students/{studentID}/exercises/{exerciseID}/attempts - Submit attempt",
		"GET    /api/v1/students/{studentID}/progress               - Student progress",
		"GET    /api/v1/students/{studentID}/report                 - Progress report",
		"POST   /api/v1/students/{studentID}/recompute              - Rebuild aggregates",
		"GET    /api/v1/achievements                                - Achievement catalog",
	}},
	{"Leaderboards", []string{
		"GET    /api/v1/cohorts/{cohortID}/leaderboard              - Cohort ranking",
		"GET    /api/v1/cohorts/{cohortID}/leaderboard/ws           - Live ranking stream",
	}},
}

// printRoutes logs every served route at debug level
func printRoutes(logger *logging.Logger) {
	var b strings.Builder
	for _, group := range routeGroups {
		b.WriteString("\n" + group.name + ":\n")
		for _, route := range group.routes {
			b.WriteString("  " + route + "\n")
		}
	}
	logger.Debug("available routes" + b.String())
}
