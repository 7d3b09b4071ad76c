package routingtable

import (
	"testing"

	"github.com/rmacdonaldsmith/pshare-go/pkg/routingtable"
)

func TestInMemoryRoutingTable_AddWildcardRoute(t *testing.T) {
	rt := NewInMemoryRoutingTable()

	res, err := rt.AddRoute("NAV_*", route("NAV_*", "", dest1), t0)
	if err != nil {
		t.Fatalf("AddRoute failed: %v", err)
	}
	if !res.Wildcard || !res.FirstForName {
		t.Errorf("Expected new wildcard rule, got %+v", res)
	}
	want := routingtable.WildcardKey{NamePattern: "NAV_*", AppPattern: "*"}
	if res.Key != want {
		t.Errorf("Expected key %v, got %v", want, res.Key)
	}
	if len(rt.Names()) != 0 {
		t.Error("wildcard rule should not create exact routes")
	}

	// same pattern pair spelled differently refreshes the same template
	res, err = rt.AddRoute("NAV_*:*", route("NAV_*:*", "", dest1), t0)
	if err != nil {
		t.Fatalf("AddRoute failed: %v", err)
	}
	if !res.Refreshed {
		t.Errorf("Expected refresh of existing template, got %+v", res)
	}
	if got := len(rt.WildcardRoutes()[0].Routes); got != 1 {
		t.Errorf("Expected 1 template, got %d", got)
	}
}

func TestInMemoryRoutingTable_WildcardPatternedDestinationIsDropped(t *testing.T) {
	rt := NewInMemoryRoutingTable()

	rt.AddRoute("NAV_*", route("", "OTHER_*", dest1), t0)

	materialized := rt.ResolveWildcard("NAV_X", "pNav")
	if len(materialized) != 1 {
		t.Fatalf("Expected 1 materialized route, got %d", len(materialized))
	}
	if got := materialized[0].Route.DestName; got != "NAV_X" {
		t.Errorf("Expected destination to keep the source name, got %q", got)
	}
}

func TestInMemoryRoutingTable_WildcardMatching(t *testing.T) {
	rt := NewInMemoryRoutingTable()

	rt.AddRoute("NAV_*:pNav*", route("", "", dest1), t0)

	tests := []struct {
		name   string
		source string
		want   int
	}{
		{"NAV_X", "pNav", 1},
		{"NAV_Y", "pNavigator", 1},
		{"NAV_X", "pHelm", 0},
		{"GPS_X", "pNav", 0},
	}

	for _, tt := range tests {
		got := rt.ResolveWildcard(tt.name, tt.source)
		if len(got) != tt.want {
			t.Errorf("ResolveWildcard(%q, %q) returned %d routes, want %d", tt.name, tt.source, len(got), tt.want)
		}
	}
}

func TestInMemoryRoutingTable_WildcardPromotion(t *testing.T) {
	rt := NewInMemoryRoutingTable()

	rt.AddRoute("*_X", route("", "^", dest1), t0)

	first := rt.ResolveWildcard("A_X", "app")
	if len(first) != 1 {
		t.Fatalf("Expected 1 materialized route, got %d", len(first))
	}
	r := first[0].Route
	if r.SrcName != "A_X" || r.DestName != "A" {
		t.Errorf("Expected A_X->A, got %s", r)
	}
	if first[0].Pattern.NamePattern != "*_X" {
		t.Errorf("Expected pattern *_X, got %v", first[0].Pattern)
	}

	exact := rt.ResolveExact("A_X")
	if len(exact) != 1 || exact[0] != r {
		t.Fatal("materialized route should be promoted to an exact route")
	}

	// resolving again reuses the promoted route
	second := rt.ResolveWildcard("A_X", "app")
	if len(second) != 1 || second[0].Route != r {
		t.Error("repeated resolution should return the promoted route")
	}
	if got := len(rt.ResolveExact("A_X")); got != 1 {
		t.Errorf("Expected promotion to be idempotent, got %d exact routes", got)
	}
}

func TestInMemoryRoutingTable_WildcardPrefixRename(t *testing.T) {
	rt := NewInMemoryRoutingTable()

	rt.AddRoute("NAV_*", route("", "REMOTE_", dest1), t0)

	got := rt.ResolveWildcard("NAV_X", "app")
	if len(got) != 1 {
		t.Fatalf("Expected 1 route, got %d", len(got))
	}
	if got[0].Route.DestName != "REMOTE_NAV_X" {
		t.Errorf("Expected REMOTE_NAV_X, got %q", got[0].Route.DestName)
	}
}

func TestInMemoryRoutingTable_CaretWithTwoStars(t *testing.T) {
	rt := NewInMemoryRoutingTable()

	rt.AddRoute("*_*", route("", "^", dest1), t0)

	got := rt.ResolveWildcard("A_B", "app")
	if len(got) != 1 {
		t.Fatalf("Expected 1 route, got %d", len(got))
	}
	if got[0].Route.DestName != "^A_B" {
		t.Errorf("Expected caret prefix when the star capture is ambiguous, got %q", got[0].Route.DestName)
	}
}

func TestInMemoryRoutingTable_MultipleRulesMatch(t *testing.T) {
	rt := NewInMemoryRoutingTable()

	rt.AddRoute("NAV_*", route("", "", dest1), t0)
	rt.AddRoute("*_X", route("", "", dest2), t0)

	got := rt.ResolveWildcard("NAV_X", "app")
	if len(got) != 2 {
		t.Fatalf("Expected 2 materialized routes, got %d", len(got))
	}
	// keys are visited in sorted order: "*_X" sorts before "NAV_*"
	if got[0].Route.Dest != dest2 || got[1].Route.Dest != dest1 {
		t.Errorf("Unexpected resolution order: %s, %s", got[0].Route, got[1].Route)
	}
}

func TestInMemoryRoutingTable_MissCacheInvalidatedByNewRule(t *testing.T) {
	rt := NewInMemoryRoutingTable()

	rt.AddRoute("NAV_*", route("", "", dest1), t0)
	if got := rt.ResolveWildcard("GPS_X", "app"); len(got) != 0 {
		t.Fatalf("Expected no match, got %d", len(got))
	}

	rt.AddRoute("GPS_*", route("", "", dest1), t0)
	if got := rt.ResolveWildcard("GPS_X", "app"); len(got) != 1 {
		t.Errorf("Expected new rule to match after cache invalidation, got %d", len(got))
	}
}

func TestInMemoryRoutingTable_MaterializedRouteInheritsLimits(t *testing.T) {
	rt := NewInMemoryRoutingTable()

	template := route("", "", dest1)
	template.Frequency = 4
	template.MaxShares = 3
	rt.AddRoute("NAV_*", template, t0)

	got := rt.ResolveWildcard("NAV_X", "app")
	if len(got) != 1 {
		t.Fatalf("Expected 1 route, got %d", len(got))
	}
	r := got[0].Route
	if r.Frequency != 4 || r.MaxShares != 3 || r.SharesCompleted != 0 {
		t.Errorf("materialized route should copy template limits: %+v", r)
	}

	// sends on the materialized route do not touch the template
	r.RecordSend(t0)
	if rt.WildcardRoutes()[0].Routes[0].SharesCompleted != 0 {
		t.Error("template history should be independent of materialized routes")
	}
}

func TestInMemoryRoutingTable_OverlappingRulesMaterializeOnce(t *testing.T) {
	rt := NewInMemoryRoutingTable()

	rt.AddRoute("NAV_*", route("", "", dest1), t0)
	rt.AddRoute("*_X", route("", "", dest1), t0)

	got := rt.ResolveWildcard("NAV_X", "app")
	if len(got) != 1 {
		t.Fatalf("Expected 1 route for overlapping rules, got %d", len(got))
	}
	if exact := rt.ResolveExact("NAV_X"); len(exact) != 1 || exact[0] != got[0].Route {
		t.Errorf("Expected a single promoted route, got %d", len(exact))
	}
}

func TestInMemoryRoutingTable_CaretEmptyCaptureIsSkipped(t *testing.T) {
	rt := NewInMemoryRoutingTable()

	rt.AddRoute("*_X", route("", "^", dest1), t0)

	if got := rt.ResolveWildcard("_X", "app"); len(got) != 0 {
		t.Fatalf("Expected no route when the star captures nothing, got %s", got[0].Route)
	}
	if got := len(rt.ResolveExact("_X")); got != 0 {
		t.Errorf("Expected nothing promoted, got %d exact routes", got)
	}

	// other names still materialize
	if got := rt.ResolveWildcard("A_X", "app"); len(got) != 1 || got[0].Route.DestName != "A" {
		t.Errorf("Expected A_X to be shared as A, got %v", got)
	}
}
