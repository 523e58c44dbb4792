package model_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/okian/diarisk/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestHealthMetrics(t *testing.T) {
	convey.Convey("Given health metrics", t, func() {
		convey.Convey("When every mandatory field is present", func() {
			m := model.HealthMetrics{
				Age:           model.Float(50),
				BMI:           model.Float(30),
				Glucose:       model.Float(110),
				BloodPressure: model.Float(80),
			}

			convey.Convey("Then HasMandatory reports true", func() {
				convey.So(m.HasMandatory(), convey.ShouldBeTrue)
			})

			convey.Convey("And Resolve applies the optional defaults", func() {
				r := m.Resolve()
				convey.So(r.Age, convey.ShouldEqual, 50)
				convey.So(r.Pregnancies, convey.ShouldEqual, model.DefaultPregnancies)
				convey.So(r.SkinThickness, convey.ShouldEqual, model.DefaultSkinThickness)
				convey.So(r.Insulin, convey.ShouldEqual, model.DefaultInsulin)
				convey.So(r.DiabetesPedigreeFunction, convey.ShouldEqual, model.DefaultDiabetesPedigreeFunction)
				convey.So(r.SleepHours, convey.ShouldEqual, model.DefaultSleepHours)
			})
		})

		convey.Convey("When an optional field is explicitly zero", func() {
			m := model.HealthMetrics{SkinThickness: model.Float(0), SleepHours: model.Float(0)}

			convey.Convey("Then the explicit zero is kept", func() {
				r := m.Resolve()
				convey.So(r.SkinThickness, convey.ShouldEqual, 0)
				convey.So(r.SleepHours, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When a mandatory field is zero", func() {
			m := model.HealthMetrics{
				Age:           model.Float(0),
				BMI:           model.Float(25),
				Glucose:       model.Float(100),
				BloodPressure: model.Float(80),
			}

			convey.Convey("Then it counts as missing", func() {
				convey.So(m.HasMandatory(), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When a field is not finite", func() {
			m := model.HealthMetrics{Age: model.Float(40), Insulin: model.Float(math.Inf(1))}

			convey.Convey("Then Finite names it", func() {
				name, ok := m.Finite()
				convey.So(ok, convey.ShouldBeFalse)
				convey.So(name, convey.ShouldEqual, "insulin")
			})
		})

		convey.Convey("When a field is negative", func() {
			m := model.HealthMetrics{Glucose: model.Float(-1)}

			convey.Convey("Then Validate names it", func() {
				err := m.Validate()
				convey.So(err, convey.ShouldWrap, model.ErrOutOfRange)
				convey.So(err.Error(), convey.ShouldEqual, "glucose must be at least 0")
			})
		})
	})
}

func TestHealthMetricsValidate(t *testing.T) {
	set := map[string]func(*model.HealthMetrics, float64){
		"age":                      func(m *model.HealthMetrics, v float64) { m.Age = model.Float(v) },
		"bmi":                      func(m *model.HealthMetrics, v float64) { m.BMI = model.Float(v) },
		"pregnancies":              func(m *model.HealthMetrics, v float64) { m.Pregnancies = model.Float(v) },
		"skinThickness":            func(m *model.HealthMetrics, v float64) { m.SkinThickness = model.Float(v) },
		"insulin":                  func(m *model.HealthMetrics, v float64) { m.Insulin = model.Float(v) },
		"diabetesPedigreeFunction": func(m *model.HealthMetrics, v float64) { m.DiabetesPedigreeFunction = model.Float(v) },
		"sleepHours":               func(m *model.HealthMetrics, v float64) { m.SleepHours = model.Float(v) },
	}
	bounds := []struct {
		field    string
		min, max float64
	}{
		{"age", 1, 120},
		{"bmi", 10, 70},
		{"pregnancies", 0, 20},
		{"skinThickness", 0, 99},
		{"insulin", 0, 900},
		{"diabetesPedigreeFunction", 0, 3},
		{"sleepHours", 0, 24},
	}

	convey.Convey("Given a valid profile", t, func() {
		base := func() model.HealthMetrics {
			return model.HealthMetrics{
				Age:           model.Float(50),
				BMI:           model.Float(30),
				Glucose:       model.Float(120),
				BloodPressure: model.Float(80),
			}
		}
		convey.So(base().Validate(), convey.ShouldBeNil)

		for _, b := range bounds {
			convey.Convey("When "+b.field+" sits on its bounds", func() {
				lo, hi := base(), base()
				set[b.field](&lo, b.min)
				set[b.field](&hi, b.max)

				convey.Convey("Then both are accepted", func() {
					convey.So(lo.Validate(), convey.ShouldBeNil)
					convey.So(hi.Validate(), convey.ShouldBeNil)
				})
			})

			convey.Convey("When "+b.field+" steps past its bounds", func() {
				lo, hi := base(), base()
				set[b.field](&lo, b.min-0.1)
				set[b.field](&hi, b.max+0.1)

				convey.Convey("Then both are rejected with the field and bounds", func() {
					for _, m := range []model.HealthMetrics{lo, hi} {
						err := m.Validate()
						convey.So(err, convey.ShouldWrap, model.ErrOutOfRange)
						var re *model.RangeError
						convey.So(errors.As(err, &re), convey.ShouldBeTrue)
						convey.So(re.Field, convey.ShouldEqual, b.field)
						convey.So(re.Min, convey.ShouldEqual, b.min)
						convey.So(re.Max, convey.ShouldEqual, b.max)
					}
				})
			})
		}

		convey.Convey("When age is out of range", func() {
			m := base()
			m.Age = model.Float(121)

			convey.Convey("Then the message names both bounds", func() {
				convey.So(m.Validate().Error(), convey.ShouldEqual, "age must be between 1 and 120")
			})
		})

		convey.Convey("When glucose and blood pressure are very large", func() {
			m := base()
			m.Glucose = model.Float(1e200)
			m.BloodPressure = model.Float(1e6)

			convey.Convey("Then they have no upper bound", func() {
				convey.So(m.Validate(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When a mandatory field is zero", func() {
			m := base()
			m.Age = model.Float(0)
			m.BMI = model.Float(0)

			convey.Convey("Then it counts as missing rather than out of range", func() {
				convey.So(m.Validate(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When a field is not finite", func() {
			m := base()
			m.Age = model.Float(math.Inf(1))

			convey.Convey("Then Validate leaves it to Finite", func() {
				convey.So(m.Validate(), convey.ShouldBeNil)
				_, ok := m.Finite()
				convey.So(ok, convey.ShouldBeFalse)
			})
		})
	})
}

func TestAssessmentNarrativeInput(t *testing.T) {
	convey.Convey("Given a stored assessment", t, func() {
		a := &model.Assessment{
			PatientName:       "Ada",
			RiskScore:         72,
			ConfidenceScore:   92,
			KeyFactors:        []model.KeyFactor{{Name: "Glucose", Value: 2}, {Name: "BMI", Value: 1}},
			HealthSuggestions: []string{"walk"},
			CreatedAt:         time.Now(),
		}

		convey.Convey("When building the narrator input", func() {
			in := a.NarrativeInput()

			convey.Convey("Then key factors are reduced to their names", func() {
				convey.So(in.KeyFactors, convey.ShouldResemble, []string{"Glucose", "BMI"})
				convey.So(in.RiskScore, convey.ShouldEqual, 72)
				convey.So(in.ConfidenceScore, convey.ShouldEqual, 92)
				convey.So(in.PatientName, convey.ShouldEqual, "Ada")
			})

			convey.Convey("And suggestions are copied", func() {
				in.HealthSuggestions[0] = "changed"
				convey.So(a.HealthSuggestions[0], convey.ShouldEqual, "walk")
			})
		})
	})
}

func TestAssessmentClone(t *testing.T) {
	convey.Convey("Given a stored assessment", t, func() {
		a := model.Assessment{
			ID:                "a-1",
			Input:             model.HealthMetrics{Age: model.Float(50)},
			KeyFactors:        []model.KeyFactor{{Name: "Glucose", Value: 2}},
			ShapValues:        []model.Contribution{{Name: "Baseline", Value: -5.5, Kind: model.KindBaseline}},
			HealthSuggestions: []string{"walk"},
		}

		convey.Convey("When the clone is mutated", func() {
			c := a.Clone()
			*c.Input.Age = 60
			c.KeyFactors[0].Value = 9
			c.ShapValues[0].Value = 0
			c.HealthSuggestions[0] = "run"

			convey.Convey("Then the original is untouched", func() {
				convey.So(*a.Input.Age, convey.ShouldEqual, 50.0)
				convey.So(a.KeyFactors[0].Value, convey.ShouldEqual, 2.0)
				convey.So(a.ShapValues[0].Value, convey.ShouldEqual, -5.5)
				convey.So(a.HealthSuggestions[0], convey.ShouldEqual, "walk")
				convey.So(c.ID, convey.ShouldEqual, "a-1")
			})
		})
	})
}
