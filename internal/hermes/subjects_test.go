package hermes

import "testing"

func TestRouteSubjects(t *testing.T) {
	id := "0b9c7c2e-54a1-4c59-9d36-0d4f1b9e8a11"
	if got := SubjectRouteAssessed(id); got != "routerisk.route."+id+".assessed" {
		t.Errorf("unexpected assessed subject %s", got)
	}

	got, ok := RouteIDFromSubject(SubjectRouteDataUpdated(id))
	if !ok || got != id {
		t.Errorf("expected %s, got %s (%v)", id, got, ok)
	}
}

func TestRouteIDFromSubjectRejectsForeignSubjects(t *testing.T) {
	for _, s := range []string{
		"routerisk.batch.completed",
		"swarm.task.abc.created",
		"routerisk.route..assessed",
		"routerisk.route.abc",
	} {
		if _, ok := RouteIDFromSubject(s); ok {
			t.Errorf("expected %q to be rejected", s)
		}
	}
}
