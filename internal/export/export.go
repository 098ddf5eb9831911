// Package export builds XLSX workbooks of rankings and applicants for
// admins. Builders return the in-memory workbook; callers stream it to an
// HTTP response or write it to disk.
package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/tealeg/xlsx/v3"
	"gorm.io/gorm"

	"github.com/gatehouse/gatehouse/internal/models"
	"github.com/gatehouse/gatehouse/internal/ranking"
)

// Filename returns a download filename for a workbook.
func Filename(prefix string) string {
	return prefix + "_" + uuid.New().String()[:8] + ".xlsx"
}

// Ranking builds a workbook of the latest ranking for a cycle phase: one
// row per applicant with rank, score, and review count.
func Ranking(db *gorm.DB, cycleID uuid.UUID, phase string) (*xlsx.File, error) {
	gen, err := ranking.Latest(db, cycleID, phase)
	if err != nil {
		return nil, err
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Ranking " + phase)
	if err != nil {
		return nil, fmt.Errorf("export: add sheet: %w", err)
	}

	headerRow := sheet.AddRow()
	for _, h := range []string{"Rank", "Email", "Track", "Score", "Reviews", "Unscored"} {
		headerRow.AddCell().Value = h
	}

	for _, e := range gen.Entries {
		row := sheet.AddRow()
		row.AddCell().Value = strconv.Itoa(e.Rank)
		row.AddCell().Value = e.Email
		row.AddCell().Value = e.Track
		if e.Unscored {
			row.AddCell().Value = ""
		} else {
			row.AddCell().Value = strconv.FormatFloat(e.Score, 'f', 2, 64)
		}
		row.AddCell().Value = strconv.Itoa(e.ReviewCount)
		if e.Unscored {
			row.AddCell().Value = "yes"
		} else {
			row.AddCell().Value = ""
		}
	}
	return file, nil
}

// Applicants builds a workbook of a cycle's applications with their
// answers flattened into columns. Answer keys become columns in first-seen
// order so every track's questions appear.
func Applicants(db *gorm.DB, cycleID uuid.UUID) (*xlsx.File, error) {
	var apps []models.Application
	if err := db.Where("cycle_id = ?", cycleID).
		Order("submitted_at ASC, email ASC").Find(&apps).Error; err != nil {
		return nil, fmt.Errorf("export: load applications: %w", err)
	}

	answerKeys := collectAnswerKeys(apps)

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Applicants")
	if err != nil {
		return nil, fmt.Errorf("export: add sheet: %w", err)
	}

	headers := []string{"Email", "Track", "Stage", "Submitted"}
	headers = append(headers, answerKeys...)
	headerRow := sheet.AddRow()
	for _, h := range headers {
		headerRow.AddCell().Value = h
	}

	for _, app := range apps {
		row := sheet.AddRow()
		row.AddCell().Value = app.Email
		row.AddCell().Value = app.Track
		row.AddCell().Value = app.Stage
		if app.SubmittedAt != nil {
			row.AddCell().Value = app.SubmittedAt.Format("2006-01-02 15:04:05")
		} else {
			row.AddCell().Value = ""
		}

		answers := decodeAnswers(app.Answers)
		for _, key := range answerKeys {
			row.AddCell().Value = answers[key]
		}
	}
	return file, nil
}

// Decisions builds a workbook of a phase's cutoff audit records.
func Decisions(db *gorm.DB, cycleID uuid.UUID, phase string) (*xlsx.File, error) {
	var decisions []models.CutoffDecision
	if err := db.Where("cycle_id = ? AND phase = ?", cycleID, phase).
		Order("created_at ASC").Find(&decisions).Error; err != nil {
		return nil, fmt.Errorf("export: load decisions: %w", err)
	}

	byApp, err := applicantEmails(db, cycleID)
	if err != nil {
		return nil, err
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Decisions " + phase)
	if err != nil {
		return nil, fmt.Errorf("export: add sheet: %w", err)
	}

	headerRow := sheet.AddRow()
	for _, h := range []string{"Email", "Action", "From", "To", "Overridden", "Reason", "Decided By", "At"} {
		headerRow.AddCell().Value = h
	}
	for _, d := range decisions {
		row := sheet.AddRow()
		row.AddCell().Value = byApp[d.ApplicationID]
		row.AddCell().Value = d.Action
		row.AddCell().Value = d.FromStage
		row.AddCell().Value = d.ToStage
		if d.Overridden {
			row.AddCell().Value = "yes"
		} else {
			row.AddCell().Value = ""
		}
		row.AddCell().Value = d.OverrideReason
		row.AddCell().Value = d.DecidedBy
		row.AddCell().Value = d.CreatedAt.Format("2006-01-02 15:04:05")
	}
	return file, nil
}

func applicantEmails(db *gorm.DB, cycleID uuid.UUID) (map[uuid.UUID]string, error) {
	var apps []models.Application
	if err := db.Select("id", "email").Where("cycle_id = ?", cycleID).Find(&apps).Error; err != nil {
		return nil, fmt.Errorf("export: load applicant emails: %w", err)
	}
	out := make(map[uuid.UUID]string, len(apps))
	for _, a := range apps {
		out[a.ID] = a.Email
	}
	return out, nil
}

// collectAnswerKeys gathers answer keys across applications in first-seen
// order.
func collectAnswerKeys(apps []models.Application) []string {
	var keys []string
	seen := map[string]bool{}
	for _, app := range apps {
		for _, key := range sortedKeys(decodeAnswers(app.Answers)) {
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	return keys
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// decodeAnswers flattens an answers JSON object to strings for cells.
func decodeAnswers(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	var generic map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return nil
	}
	out := make(map[string]string, len(generic))
	for k, v := range generic {
		switch t := v.(type) {
		case string:
			out[k] = t
		case []interface{}:
			var parts []string
			for _, p := range t {
				parts = append(parts, fmt.Sprint(p))
			}
			out[k] = strings.Join(parts, ", ")
		default:
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}
