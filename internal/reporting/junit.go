// Package reporting renders batch summaries for machines (JUnit XML, JSON)
// and for humans (terminal text).
package reporting

import (
	"encoding/xml"
	"fmt"
	"os"
	"time"

	"github.com/pgquest/questeval/internal/models"
)

// JUnit XML schema types

// JUnitTestSuites is the top-level container.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Time       float64          `xml:"time,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite maps to one batch run.
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Skipped    int             `xml:"skipped,attr"`
	Time       float64         `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase maps to one quest.
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitFailure represents a quest that failed or timed out.
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitSkipped marks a quest whose cached result was reused.
type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitProperty is a key-value metadata entry.
type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// ConvertToJUnit converts a BatchSummary to JUnit XML format.
func ConvertToJUnit(summary *models.BatchSummary) *JUnitTestSuites {
	durationSec := float64(summary.DurationMs) / 1000.0

	suite := JUnitTestSuite{
		Name:      summary.BatchName,
		Tests:     summary.Total,
		Failures:  summary.Failed + summary.Timeouts,
		Skipped:   summary.SkippedCached,
		Time:      durationSec,
		Timestamp: summary.Timestamp.Format(time.RFC3339),
		Properties: []JUnitProperty{
			{Name: "run_id", Value: summary.RunID},
			{Name: "success_rate", Value: fmt.Sprintf("%.4f", summary.SuccessRate())},
		},
	}

	for i := range summary.QuestOutcomes {
		suite.TestCases = append(suite.TestCases, convertQuestOutcome(summary.BatchName, &summary.QuestOutcomes[i]))
	}

	return &JUnitTestSuites{
		Tests:      summary.Total,
		Failures:   summary.Failed + summary.Timeouts,
		Time:       durationSec,
		TestSuites: []JUnitTestSuite{suite},
	}
}

func convertQuestOutcome(batchName string, o *models.QuestOutcome) JUnitTestCase {
	tc := JUnitTestCase{
		Name:      o.Path,
		Classname: batchName,
		Time:      float64(o.Result.DurationMs) / 1000.0,
	}

	switch o.Result.Status {
	case models.StatusFailure:
		tc.Failure = &JUnitFailure{
			Message: firstLine(o.Result.ErrorMessage),
			Type:    "QuestFailure",
			Body:    o.Result.ErrorMessage,
		}
	case models.StatusTimeout:
		tc.Failure = &JUnitFailure{
			Message: o.Result.ErrorMessage,
			Type:    "QuestTimeout",
		}
	}

	if o.Cached {
		tc.Skipped = &JUnitSkipped{Message: "cached result reused"}
	}

	return tc
}

// firstLine trims a multi-line error down to its first line for the
// message attribute; the full text lives in the element body.
func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}

// WriteJUnitXML writes JUnit XML to the specified file path.
func WriteJUnitXML(summary *models.BatchSummary, path string) error {
	suites := ConvertToJUnit(summary)

	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JUnit XML: %w", err)
	}

	output := append([]byte(xml.Header), data...)
	return os.WriteFile(path, output, 0644)
}
