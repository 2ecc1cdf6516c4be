package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"

	"github.com/abelbrown/viralengine/internal/model"
)

// fromDB wraps a mocked handle without touching the schema.
func fromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func testOpportunity(id string, score float64, status model.OpportunityStatus) model.Opportunity {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	vol := 1200
	return model.Opportunity{
		ID:              id,
		ClientID:        "client-1",
		Industry:        "marketing",
		Channel:         model.ChannelBlog,
		Topic:           "SEO traffic drop after core update",
		Angle:           "What the data says",
		Hook:            "Your traffic didn't vanish. It moved.",
		Reasoning:       "high demand",
		Score:           score,
		ScoreBreakdown:  model.ScoreBreakdown{Engagement: 20, Freshness: 15, Relevance: 8, Novelty: 10, Seasonality: 5},
		SourceSignalIDs: []string{"s1", "s2"},
		Status:          status,
		SEOData: &model.SEOData{
			SearchIntelligence: model.SearchIntelligence{
				HasData:      true,
				DataSources:  model.DataSources{RealVolume: true},
				SearchVolume: &vol,
				DemandLevel:  model.DemandHigh,
			},
			OpportunityType: model.DemandCapture,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestInsertAndGetOpportunity(t *testing.T) {
	st := openTest(t)
	ctx := context.Background()

	want := testOpportunity("o1", 58, model.StatusNew)
	if err := st.InsertOpportunityBatch(ctx, []model.Opportunity{want}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := st.GetOpportunity(ctx, "o1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(want, got, cmpTime); diff != "" {
		t.Errorf("opportunity mismatch (-want +got):\n%s", diff)
	}

	if _, err := st.GetOpportunity(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}
}

func TestInsertOpportunityBatchAtomic(t *testing.T) {
	st := openTest(t)
	ctx := context.Background()

	// Duplicate primary key in the same batch fails the whole batch.
	batch := []model.Opportunity{
		testOpportunity("dup", 10, model.StatusNew),
		testOpportunity("dup", 20, model.StatusNew),
	}
	if err := st.InsertOpportunityBatch(ctx, batch); err == nil {
		t.Fatal("expected error for duplicate id")
	}
	got, err := st.ListOpportunities(ctx, OpportunityFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("partial batch committed: %d rows", len(got))
	}
}

func TestInsertOpportunityBatchRollsBackOnExecError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	st := fromDB(db)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO opportunities")
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err = st.InsertOpportunityBatch(context.Background(), []model.Opportunity{
		testOpportunity("a", 1, model.StatusNew),
		testOpportunity("b", 2, model.StatusNew),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestInsertOpportunityBatchCommits(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	st := fromDB(db)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO opportunities")
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := st.InsertOpportunityBatch(context.Background(), []model.Opportunity{testOpportunity("a", 1, model.StatusNew)}); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestListOpportunitiesFilters(t *testing.T) {
	st := openTest(t)
	ctx := context.Background()

	a := testOpportunity("a", 40, model.StatusNew)
	b := testOpportunity("b", 80, model.StatusNew)
	b.Channel = model.ChannelVideo
	c := testOpportunity("c", 60, model.StatusArchived)
	c.ClientID = "client-2"
	if err := st.InsertOpportunityBatch(ctx, []model.Opportunity{a, b, c}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		filter OpportunityFilter
		want   []string
	}{
		{"all by score", OpportunityFilter{}, []string{"b", "c", "a"}},
		{"client", OpportunityFilter{ClientID: "client-1"}, []string{"b", "a"}},
		{"status", OpportunityFilter{Status: model.StatusArchived}, []string{"c"}},
		{"channel", OpportunityFilter{Channel: model.ChannelVideo}, []string{"b"}},
		{"limit", OpportunityFilter{Limit: 1}, []string{"b"}},
		{"since future", OpportunityFilter{Since: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.ListOpportunities(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			var gotIDs []string
			for _, o := range got {
				gotIDs = append(gotIDs, o.ID)
			}
			if diff := cmp.Diff(tt.want, gotIDs); diff != "" {
				t.Errorf("ids (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUpdateOpportunityStatusConditional(t *testing.T) {
	st := openTest(t)
	ctx := context.Background()
	now := time.Now()

	if err := st.InsertOpportunityBatch(ctx, []model.Opportunity{testOpportunity("o", 50, model.StatusNew)}); err != nil {
		t.Fatal(err)
	}

	if err := st.UpdateOpportunityStatus(ctx, "o", model.StatusNew, model.StatusShortlisted, now); err != nil {
		t.Fatalf("first update: %v", err)
	}
	err := st.UpdateOpportunityStatus(ctx, "o", model.StatusNew, model.StatusArchived, now)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("stale update err = %v, want ErrConflict", err)
	}
	err = st.UpdateOpportunityStatus(ctx, "nope", model.StatusNew, model.StatusArchived, now)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing update err = %v, want ErrNotFound", err)
	}

	got, _ := st.GetOpportunity(ctx, "o")
	if got.Status != model.StatusShortlisted {
		t.Errorf("status = %s, want shortlisted", got.Status)
	}
}
