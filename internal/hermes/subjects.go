package hermes

import "strings"

const (
	// SubjectDataUpdated is published by the collection layer when new factor
	// data lands for a route.
	SubjectDataUpdated = "routerisk.route.*.data_updated"
	SubjectBatchDone   = "routerisk.batch.completed"

	QueueGroup = "routerisk"

	StreamName   = "ROUTE_RISK_EVENTS"
	StreamMaxAge = "720h" // 30 days
)

func SubjectRouteAssessed(routeID string) string { return "routerisk.route." + routeID + ".assessed" }
func SubjectRouteDataUpdated(routeID string) string { return "routerisk.route." + routeID + ".data_updated" }

// RouteIDFromSubject extracts the route token from a routerisk.route.<id>.<event>
// subject.
func RouteIDFromSubject(subject string) (string, bool) {
	parts := strings.Split(subject, ".")
	if len(parts) != 4 || parts[0] != "routerisk" || parts[1] != "route" || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}
