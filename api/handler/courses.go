package handler

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/lmstrack/history"
	"github.com/use-agent/lmstrack/models"
)

// CourseSummary is one entry of GET /api/v1/courses.
type CourseSummary struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	LatestDate  string `json:"latest_date,omitempty"`
	Enrollments int    `json:"enrollments"`
	Completed   int    `json:"completed"`
	Snapshots   int    `json:"snapshots"`
}

// ListCourses returns a handler for GET /api/v1/courses.
//
// Query parameters:
//
//	q     case-insensitive title substring filter
//	sort  "title" (default) or "enrollments" (descending)
func ListCourses(dataFile string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ds, err := loadDataset(dataFile)
		if err != nil {
			respondError(c, err)
			return
		}

		q := strings.ToLower(strings.TrimSpace(c.Query("q")))
		out := make([]CourseSummary, 0, ds.Len())
		for _, r := range ds.Records() {
			if q != "" && !strings.Contains(strings.ToLower(r.Title), q) {
				continue
			}
			s := CourseSummary{Title: r.Title, Type: r.Type, Snapshots: len(r.Dates())}
			if date, enr, comp, ok := r.Latest(); ok {
				s.LatestDate, s.Enrollments, s.Completed = date, enr, comp
			}
			out = append(out, s)
		}

		switch c.DefaultQuery("sort", "title") {
		case "title":
			sort.SliceStable(out, func(i, j int) bool { return out[i].Title < out[j].Title })
		case "enrollments":
			sort.SliceStable(out, func(i, j int) bool { return out[i].Enrollments > out[j].Enrollments })
		default:
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, "sort must be title or enrollments", nil))
			return
		}

		c.JSON(http.StatusOK, models.APIResponse{Success: true, Data: out})
	}
}

// GetCourse returns a handler for GET /api/v1/courses/*title. The title is
// matched as a catch-all so it may contain slashes.
func GetCourse(dataFile string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ds, err := loadDataset(dataFile)
		if err != nil {
			respondError(c, err)
			return
		}

		title := strings.TrimPrefix(c.Param("title"), "/")
		if title == "" {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, "course title is required", nil))
			return
		}
		rec, ok := ds.Get(title)
		if !ok {
			respondError(c, models.NewScrapeError(models.ErrCodeNotFound, "no course titled "+title, nil))
			return
		}
		c.JSON(http.StatusOK, models.APIResponse{Success: true, Data: ToCourseHistory(rec)})
	}
}

// ToCourseHistory converts a persisted record to its API view.
func ToCourseHistory(r *history.Record) models.CourseHistory {
	return models.CourseHistory{
		Title:             r.Title,
		Type:              r.Type,
		CreationDate:      r.CreationDate,
		DaysSinceCreation: r.DaysSinceCreation,
		TrainingMaterials: r.TrainingMaterials,
		Enrollments:       nonNil(r.Enrollments),
		Completed:         nonNil(r.Completed),
	}
}

func loadDataset(dataFile string) (*history.Dataset, error) {
	ds, err := history.Load(dataFile, history.Today(time.Now()))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeStore, "failed to load history", err)
	}
	return ds, nil
}

func nonNil(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}
