package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	repository "github.com/okian/diarisk/internal/adapters/repository"
	"github.com/okian/diarisk/internal/domain/model"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func assessment(id, user string, offset time.Duration) model.Assessment {
	return model.Assessment{
		ID:           id,
		UserID:       user,
		PatientName:  "Ada",
		Input:        model.HealthMetrics{Age: model.Float(50), BMI: model.Float(31)},
		RiskScore:    34,
		RiskBand:     model.BandLow,
		ShapValues:   []model.Contribution{{Name: "Baseline", Value: -5.5, Kind: model.KindBaseline}},
		KeyFactors:   []model.KeyFactor{{Name: "Glucose", Value: 2.7}},
		ModelVersion: "v1",
		ReportStatus: model.ReportPending,
		CreatedAt:    epoch.Add(offset),
		UpdatedAt:    epoch.Add(offset),
	}
}

func ids(items []model.Assessment) []string {
	out := make([]string, len(items))
	for i, a := range items {
		out[i] = a.ID
	}
	return out
}

// storeContract runs the behaviour every backend must share.
func storeContract(t *testing.T, name string, open func() repository.Store) {
	ctx := context.Background()

	Convey("Given an empty "+name+" store", t, func() {
		store := open()
		Reset(func() { _ = store.Close() })

		Convey("When saving an assessment", func() {
			err := store.Save(ctx, assessment("a1", "u1", 0))

			Convey("Then it can be read back", func() {
				So(err, ShouldBeNil)
				got, err := store.Get(ctx, "a1")
				So(err, ShouldBeNil)
				So(got.UserID, ShouldEqual, "u1")
				So(got.RiskScore, ShouldEqual, 34)
				So(*got.Input.Age, ShouldEqual, 50.0)
				So(got.Input.Glucose, ShouldBeNil)
				So(got.ShapValues[0].Kind, ShouldEqual, model.KindBaseline)
				So(got.CreatedAt.Equal(epoch), ShouldBeTrue)
				So(store.Count(ctx), ShouldEqual, 1)
			})

			Convey("And saving the same id again fails", func() {
				err := store.Save(ctx, assessment("a1", "u1", time.Second))
				So(errors.Is(err, repository.ErrDuplicateID), ShouldBeTrue)
				So(store.Count(ctx), ShouldEqual, 1)
			})
		})

		Convey("When saving without a user", func() {
			err := store.Save(ctx, assessment("a1", "", 0))

			Convey("Then it is rejected", func() {
				So(errors.Is(err, repository.ErrInvalidAssessment), ShouldBeTrue)
			})
		})

		Convey("When reading an unknown id", func() {
			_, err := store.Get(ctx, "missing")

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When several users have history", func() {
			So(store.Save(ctx, assessment("b", "u1", 2*time.Minute)), ShouldBeNil)
			So(store.Save(ctx, assessment("a", "u1", 1*time.Minute)), ShouldBeNil)
			So(store.Save(ctx, assessment("c", "u1", 3*time.Minute)), ShouldBeNil)
			So(store.Save(ctx, assessment("z", "u1", 2*time.Minute)), ShouldBeNil)
			So(store.Save(ctx, assessment("x", "u10", 5*time.Minute)), ShouldBeNil)
			So(store.Save(ctx, assessment("y", "u", 6*time.Minute)), ShouldBeNil)

			Convey("Then history is newest first with id breaking ties", func() {
				items, err := store.History(ctx, "u1", 10)
				So(err, ShouldBeNil)
				So(ids(items), ShouldResemble, []string{"c", "z", "b", "a"})
			})

			Convey("Then the limit caps the result", func() {
				items, err := store.History(ctx, "u1", 2)
				So(err, ShouldBeNil)
				So(ids(items), ShouldResemble, []string{"c", "z"})
			})

			Convey("Then users sharing a prefix stay separate", func() {
				items, err := store.History(ctx, "u10", 10)
				So(err, ShouldBeNil)
				So(ids(items), ShouldResemble, []string{"x"})
				items, err = store.History(ctx, "u", 10)
				So(err, ShouldBeNil)
				So(ids(items), ShouldResemble, []string{"y"})
			})

			Convey("Then an unknown user has an empty history", func() {
				items, err := store.History(ctx, "nobody", 10)
				So(err, ShouldBeNil)
				So(items, ShouldBeEmpty)
			})
		})

		Convey("When the limit is not positive", func() {
			_, err := store.History(ctx, "u1", 0)

			Convey("Then ErrInvalidLimit is returned", func() {
				So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
			})
		})

		Convey("When a report is attached", func() {
			So(store.Save(ctx, assessment("a1", "u1", 0)), ShouldBeNil)
			So(store.AttachReport(ctx, "a1", "All good."), ShouldBeNil)

			Convey("Then the assessment carries it", func() {
				got, err := store.Get(ctx, "a1")
				So(err, ShouldBeNil)
				So(got.Report, ShouldEqual, "All good.")
				So(got.ReportStatus, ShouldEqual, model.ReportReady)
				So(got.UpdatedAt.After(got.CreatedAt), ShouldBeTrue)
			})
		})

		Convey("When narration fails", func() {
			So(store.Save(ctx, assessment("a1", "u1", 0)), ShouldBeNil)
			So(store.MarkReportFailed(ctx, "a1", "rate_limited"), ShouldBeNil)

			Convey("Then the reason is recorded", func() {
				got, err := store.Get(ctx, "a1")
				So(err, ShouldBeNil)
				So(got.ReportStatus, ShouldEqual, model.ReportFailed)
				So(got.ReportError, ShouldEqual, "rate_limited")
				So(got.Report, ShouldBeEmpty)
			})
		})

		Convey("When updating an unknown assessment", func() {
			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(store.AttachReport(ctx, "missing", "x"), repository.ErrNotFound), ShouldBeTrue)
				So(errors.Is(store.MarkReportFailed(ctx, "missing", "x"), repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When saving concurrently", func() {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_ = store.Save(ctx, assessment(fmt.Sprintf("c%02d", i), "u1", time.Duration(i)*time.Second))
				}(i)
			}
			wg.Wait()

			Convey("Then every assessment is stored in order", func() {
				So(store.Count(ctx), ShouldEqual, 20)
				items, err := store.History(ctx, "u1", 3)
				So(err, ShouldBeNil)
				So(ids(items), ShouldResemble, []string{"c19", "c18", "c17"})
			})
		})
	})
}

func later() time.Time { return epoch.Add(time.Hour) }

func TestMemoryStore(t *testing.T) {
	storeContract(t, "memory", func() repository.Store {
		return repository.NewMemoryStore(repository.WithClock(later))
	})

	Convey("Given a memory store", t, func() {
		store := repository.NewMemoryStore()
		ctx := context.Background()
		So(store.Save(ctx, assessment("a1", "u1", 0)), ShouldBeNil)

		Convey("When a caller mutates a returned assessment", func() {
			got, _ := store.Get(ctx, "a1")
			got.ShapValues[0].Value = 99

			Convey("Then the stored copy is unchanged", func() {
				again, _ := store.Get(ctx, "a1")
				So(again.ShapValues[0].Value, ShouldEqual, -5.5)
			})
		})
	})
}

func TestBoltStore(t *testing.T) {
	storeContract(t, "bolt", func() repository.Store {
		path := filepath.Join(t.TempDir(), uuid.NewString()+".db")
		store, err := repository.NewBoltStore(path, repository.WithClock(later))
		if err != nil {
			t.Fatalf("open bolt: %v", err)
		}
		return store
	})

	Convey("Given a bolt file", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "history.db")
		store, err := repository.NewBoltStore(path)
		So(err, ShouldBeNil)
		So(store.Save(ctx, assessment("a1", "u1", 0)), ShouldBeNil)
		So(store.Close(), ShouldBeNil)

		Convey("When it is reopened", func() {
			reopened, err := repository.NewBoltStore(path)
			So(err, ShouldBeNil)
			Reset(func() { _ = reopened.Close() })

			Convey("Then earlier assessments survive", func() {
				got, err := reopened.Get(ctx, "a1")
				So(err, ShouldBeNil)
				So(got.UserID, ShouldEqual, "u1")
				So(reopened.Count(ctx), ShouldEqual, 1)
			})
		})
	})
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("DIARISK_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("DIARISK_TEST_MONGO_URI not set")
	}
	storeContract(t, "mongo", func() repository.Store {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		db := "diarisk_test_" + uuid.NewString()[:8]
		store, err := repository.NewMongoStore(ctx, uri, db, repository.WithClock(later))
		if err != nil {
			t.Fatalf("open mongo: %v", err)
		}
		return store
	})
}
