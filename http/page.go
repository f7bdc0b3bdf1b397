package http

import (
	"embed"
	"html/template"
	"net/http"

	"go.uber.org/zap"
)

//go:embed templates/index.html
var templatesFS embed.FS

// Form field names. The race/ethnicity select posts as "ethnicity".
const (
	fieldGender            = "gender"
	fieldEthnicity         = "ethnicity"
	fieldParentalEducation = "parental_level_of_education"
	fieldLunch             = "lunch"
	fieldTestPreparation   = "test_preparation_course"
	fieldReadingScore      = "reading_score"
	fieldWritingScore      = "writing_score"
)

type formOptions struct {
	Gender            []string
	Ethnicity         []string
	ParentalEducation []string
	Lunch             []string
	TestPreparation   []string
}

var pageOptions = formOptions{
	Gender:    []string{"male", "female"},
	Ethnicity: []string{"group A", "group B", "group C", "group D", "group E"},
	ParentalEducation: []string{
		"associate's degree",
		"bachelor's degree",
		"high school",
		"master's degree",
		"some college",
		"some high school",
	},
	Lunch:           []string{"free/reduced", "standard"},
	TestPreparation: []string{"none", "completed"},
}

type pageData struct {
	Options   formOptions
	Form      map[string]string
	HasResult bool
	Result    float64
	Error     *errorBody
}

func parsePage() (*template.Template, error) {
	return template.ParseFS(templatesFS, "templates/index.html")
}

func (s *Server) renderPage(w http.ResponseWriter, status int, data pageData) {
	data.Options = pageOptions
	if data.Form == nil {
		data.Form = map[string]string{}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.page.Execute(w, data); err != nil {
		s.logger.Error("render page failed", zap.Error(err))
	}
}
