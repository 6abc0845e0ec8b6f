package query

import (
	"strings"
	"testing"
	"time"
)

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestBuildWhere(t *testing.T) {
	t.Run("empty criteria", func(t *testing.T) {
		if got := BuildWhere(Criteria{}); got != "" {
			t.Errorf("expected empty predicate, got %q", got)
		}
	})

	t.Run("status names", func(t *testing.T) {
		got := BuildWhere(Criteria{Status: &StatusCriterion{Names: []string{"Approved", "In Progress"}}})
		want := `status.name in ("Approved", "In Progress")`
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("status ids take precedence over names", func(t *testing.T) {
		got := BuildWhere(Criteria{Status: &StatusCriterion{
			IDs:   []string{"abc"},
			Names: []string{"Approved"},
		}})
		want := `status_id in ("abc")`
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("user ids take precedence over usernames", func(t *testing.T) {
		got := BuildWhere(Criteria{User: &UserCriterion{
			IDs:       []string{"u1"},
			Usernames: []string{"jane"},
		}})
		want := `user_id in ("u1")`
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("date older", func(t *testing.T) {
		got := BuildWhere(Criteria{Date: &DateCriterion{Kind: DateOlder, To: date("2024-03-01")}})
		want := `date < "2024-03-01"`
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("date newer", func(t *testing.T) {
		got := BuildWhere(Criteria{Date: &DateCriterion{Kind: DateNewer, From: date("2024-03-01")}})
		want := `date >= "2024-03-01"`
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("date between", func(t *testing.T) {
		got := BuildWhere(Criteria{Date: &DateCriterion{
			Kind: DateBetween,
			From: date("2024-01-01"),
			To:   date("2024-03-01"),
		}})
		want := `date >= "2024-01-01" and date <= "2024-03-01"`
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("date group with missing bound contributes nothing", func(t *testing.T) {
		criteria := Criteria{
			Status: &StatusCriterion{Names: []string{"Omitted"}},
			Date:   &DateCriterion{Kind: DateOlder}, // no To bound
		}
		got := BuildWhere(criteria)
		want := `status.name in ("Omitted")`
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("between with only one bound contributes nothing", func(t *testing.T) {
		got := BuildWhere(Criteria{Date: &DateCriterion{Kind: DateBetween, From: date("2024-01-01")}})
		if got != "" {
			t.Errorf("expected empty predicate, got %q", got)
		}
	})

	t.Run("custom attribute operators", func(t *testing.T) {
		cases := []struct {
			name string
			attr AttributeCriterion
			want string
		}{
			{"eq", AttributeCriterion{Key: "delivered", Op: AttrEq, Value: "yes"},
				`custom_attributes any (key is "delivered" and value is "yes")`},
			{"neq", AttributeCriterion{Key: "delivered", Op: AttrNeq, Value: "yes"},
				`not custom_attributes any (key is "delivered" and value is "yes")`},
			{"contains", AttributeCriterion{Key: "note", Op: AttrContains, Value: "final"},
				`custom_attributes any (key is "note" and value like "%final%")`},
			{"true", AttributeCriterion{Key: "archived", Op: AttrTrue},
				`custom_attributes any (key is "archived" and value is "true")`},
			{"false", AttributeCriterion{Key: "archived", Op: AttrFalse},
				`custom_attributes any (key is "archived" and value is "false")`},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				got := BuildWhere(Criteria{Attributes: []AttributeCriterion{tc.attr}})
				if got != tc.want {
					t.Errorf("got %q, want %q", got, tc.want)
				}
			})
		}
	})

	t.Run("multiple attributes combine with and", func(t *testing.T) {
		got := BuildWhere(Criteria{Attributes: []AttributeCriterion{
			{Key: "a", Op: AttrTrue},
			{Key: "b", Op: AttrFalse},
		}})
		want := `custom_attributes any (key is "a" and value is "true") and custom_attributes any (key is "b" and value is "false")`
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("group order is status, user, date, custom", func(t *testing.T) {
		got := BuildWhere(Criteria{
			Status:     &StatusCriterion{Names: []string{"Omitted"}},
			User:       &UserCriterion{Usernames: []string{"jane"}},
			Date:       &DateCriterion{Kind: DateOlder, To: date("2024-03-01")},
			Attributes: []AttributeCriterion{{Key: "archived", Op: AttrTrue}},
		})
		order := []string{"status.name", "user.username", "date <", "custom_attributes"}
		last := -1
		for _, marker := range order {
			idx := strings.Index(got, marker)
			if idx < 0 {
				t.Fatalf("predicate %q missing %q", got, marker)
			}
			if idx < last {
				t.Errorf("predicate %q has %q out of order", got, marker)
			}
			last = idx
		}
	})

	t.Run("never emits dangling operator", func(t *testing.T) {
		got := BuildWhere(Criteria{
			Status: &StatusCriterion{},
			Date:   &DateCriterion{Kind: DateOlder},
			User:   &UserCriterion{Usernames: []string{"jane"}},
		})
		want := `user.username in ("jane")`
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("quotes in values are escaped", func(t *testing.T) {
		got := BuildWhere(Criteria{Status: &StatusCriterion{Names: []string{`A"B`}}})
		want := `status.name in ("A\"B")`
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})
}
