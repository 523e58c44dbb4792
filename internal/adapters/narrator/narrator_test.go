package narrator_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	narrator "github.com/okian/diarisk/internal/adapters/narrator"
	"github.com/okian/diarisk/internal/domain/model"
)

func sampleInput() model.NarrativeInput {
	return model.NarrativeInput{
		PatientName:       "Ada",
		RiskScore:         72,
		ConfidenceScore:   92,
		KeyFactors:        []string{"Glucose", "BMI"},
		HealthSuggestions: []string{"Walk daily.", "Eat whole grains."},
	}
}

func candidate(report string) string {
	inner, _ := json.Marshal(map[string]string{"report": report})
	body, _ := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{
			"content":      map[string]any{"parts": []any{map[string]string{"text": string(inner)}}},
			"finishReason": "STOP",
		}},
	})
	return string(body)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func apiError(code int, status, msg string) string {
	return fmt.Sprintf(`{"error":{"code":%d,"message":%q,"status":%q}}`, code, msg, status)
}

func newGemini(url string, retries int) *narrator.Gemini {
	g, err := narrator.NewGemini("test-key",
		narrator.WithBaseURL(url),
		narrator.WithRetries(retries),
		narrator.WithRetryWait(time.Millisecond, 5*time.Millisecond),
		narrator.WithTimeout(2*time.Second),
	)
	if err != nil {
		panic(err)
	}
	return g
}

func TestBuildPrompt(t *testing.T) {
	Convey("Given narrative input", t, func() {
		in := sampleInput()

		Convey("When building the prompt", func() {
			p := narrator.BuildPrompt(in)

			Convey("Then every ingredient appears", func() {
				So(p, ShouldContainSubstring, "summary for Ada.")
				So(p, ShouldContainSubstring, "risk score is 72/100")
				So(p, ShouldContainSubstring, "92% confident")
				So(p, ShouldContainSubstring, "- **Glucose**:")
				So(p, ShouldContainSubstring, "- **BMI**:")
				So(p, ShouldContainSubstring, "- Walk daily.")
				So(p, ShouldContainSubstring, "not a real medical diagnosis")
			})
		})

		Convey("When the patient name is blank", func() {
			in.PatientName = "  "
			p := narrator.BuildPrompt(in)

			Convey("Then the default name is used", func() {
				So(p, ShouldContainSubstring, "summary for Patient.")
			})
		})
	})
}

func TestTemplate(t *testing.T) {
	Convey("Given the template narrator", t, func() {
		tpl := narrator.NewTemplate()
		ctx := context.Background()

		Convey("When narrating a scored assessment", func() {
			report, err := tpl.Generate(ctx, sampleInput())

			Convey("Then the report is deterministic and complete", func() {
				So(err, ShouldBeNil)
				So(report, ShouldStartWith, "Hi Ada,")
				So(report, ShouldContainSubstring, "72/100, with 92% confidence")
				So(report, ShouldContainSubstring, "Glucose and BMI contributed most")
				So(report, ShouldContainSubstring, "Walk daily.")
				So(report, ShouldEndWith, "consult a healthcare professional for medical advice.")
				again, _ := tpl.Generate(ctx, sampleInput())
				So(again, ShouldEqual, report)
				So(tpl.Name(), ShouldEqual, "template")
			})
		})

		Convey("When the assessment is degenerate", func() {
			report, err := tpl.Generate(ctx, model.NarrativeInput{})

			Convey("Then it explains what is missing", func() {
				So(err, ShouldBeNil)
				So(report, ShouldContainSubstring, "Hi Patient,")
				So(report, ShouldContainSubstring, "could not estimate")
				So(report, ShouldContainSubstring, "None of your measurements")
			})
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := tpl.Generate(cctx, sampleInput())

			Convey("Then the error is returned", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})
}

func TestGemini(t *testing.T) {
	ctx := context.Background()

	Convey("Given no API key", t, func() {
		_, err := narrator.NewGemini("")

		Convey("Then construction fails", func() {
			So(errors.Is(err, narrator.ErrMissingAPIKey), ShouldBeTrue)
		})
	})

	Convey("Given a healthy Gemini endpoint", t, func() {
		var gotPath, gotKey string
		var gotBody map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotKey = r.Header.Get("x-goog-api-key")
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			writeJSON(w, http.StatusOK, candidate("You are doing well."))
		}))
		Reset(srv.Close)

		Convey("When generating a report", func() {
			report, err := newGemini(srv.URL, 0).Generate(ctx, sampleInput())

			Convey("Then the report is extracted from the candidate", func() {
				So(err, ShouldBeNil)
				So(report, ShouldEqual, "You are doing well.")
			})

			Convey("And the request targets the model with the key", func() {
				So(gotPath, ShouldEqual, "/v1beta/models/gemini-1.5-flash:generateContent")
				So(gotKey, ShouldEqual, "test-key")
				cfg := gotBody["generationConfig"].(map[string]any)
				So(cfg["responseMimeType"], ShouldEqual, "application/json")
				contents := gotBody["contents"].([]any)
				text := contents[0].(map[string]any)["parts"].([]any)[0].(map[string]any)["text"].(string)
				So(text, ShouldContainSubstring, "summary for Ada.")
			})
		})
	})

	Convey("Given an endpoint that rate limits once", t, func() {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				writeJSON(w, http.StatusTooManyRequests, apiError(429, "RESOURCE_EXHAUSTED", "quota"))
				return
			}
			writeJSON(w, http.StatusOK, candidate("Second time lucky."))
		}))
		Reset(srv.Close)

		Convey("When retries are allowed", func() {
			report, err := newGemini(srv.URL, 2).Generate(ctx, sampleInput())

			Convey("Then the retry succeeds", func() {
				So(err, ShouldBeNil)
				So(report, ShouldEqual, "Second time lucky.")
				So(calls.Load(), ShouldEqual, 2)
			})
		})

		Convey("When retries are disabled", func() {
			_, err := newGemini(srv.URL, 0).Generate(ctx, sampleInput())

			Convey("Then the error is classified as rate limited", func() {
				So(errors.Is(err, narrator.ErrRateLimited), ShouldBeTrue)
				So(narrator.IsRetryable(err), ShouldBeTrue)
				So(narrator.Kind(err), ShouldEqual, "rate_limited")
			})
		})
	})

	Convey("Given failing endpoints", t, func() {
		cases := []struct {
			name   string
			status int
			body   string
			want   error
			kind   string
		}{
			{"overloaded", http.StatusServiceUnavailable, apiError(503, "UNAVAILABLE", "The model is overloaded."), narrator.ErrUnavailable, "unavailable"},
			{"bad request", http.StatusBadRequest, apiError(400, "INVALID_ARGUMENT", "bad"), narrator.ErrNarration, "narration"},
			{"not json", http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"plain words"}]}}]}`, narrator.ErrBadResponse, "bad_response"},
			{"no candidates", http.StatusOK, `{"candidates":[]}`, narrator.ErrBadResponse, "bad_response"},
			{"empty report", http.StatusOK, candidate(""), narrator.ErrBadResponse, "bad_response"},
		}

		for _, tc := range cases {
			tc := tc
			Convey("When the endpoint answers "+tc.name, func() {
				srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					writeJSON(w, tc.status, tc.body)
				}))
				defer srv.Close()

				_, err := newGemini(srv.URL, 0).Generate(ctx, sampleInput())

				Convey("Then the error kind is "+tc.kind, func() {
					So(errors.Is(err, tc.want), ShouldBeTrue)
					So(narrator.Kind(err), ShouldEqual, tc.kind)
				})
			})
		}
	})

	Convey("Given a slow endpoint", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			writeJSON(w, http.StatusOK, candidate("late"))
		}))
		Reset(srv.Close)

		Convey("When the caller's deadline passes", func() {
			cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()
			_, err := newGemini(srv.URL, 0).Generate(cctx, sampleInput())

			Convey("Then the deadline error is returned", func() {
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
				So(narrator.Kind(err), ShouldEqual, "timeout")
			})
		})
	})
}

func TestKind(t *testing.T) {
	Convey("Given assorted errors", t, func() {
		Convey("Then each maps to its label", func() {
			So(narrator.Kind(nil), ShouldEqual, "")
			So(narrator.Kind(fmt.Errorf("wrap: %w", narrator.ErrUnavailable)), ShouldEqual, "unavailable")
			So(narrator.Kind(context.Canceled), ShouldEqual, "canceled")
			So(narrator.Kind(errors.New("other")), ShouldEqual, "narration")
			So(narrator.IsRetryable(narrator.ErrBadResponse), ShouldBeFalse)
			So(strings.HasPrefix(narrator.ErrNarration.Error(), "narration"), ShouldBeTrue)
		})
	})
}
