package service

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/xuri/excelize/v2"
)

// Максимум строк лидерборда в одной выгрузке
const maxLeaderboardExportRows = 10000

// ExportService выгружает результаты инстанса и лидерборды в XLSX
type ExportService struct {
	scoring     *ScoringService
	leaderboard *LeaderboardService
}

// NewExportService создает новый сервис выгрузки
func NewExportService(scoring *ScoringService, leaderboard *LeaderboardService) *ExportService {
	return &ExportService{scoring: scoring, leaderboard: leaderboard}
}

// WriteInstanceResults пишет результаты инстанса в порядке ранга
func (s *ExportService) WriteInstanceResults(ctx context.Context, instanceID uint, w io.Writer) error {
	results, err := s.scoring.Results(ctx, instanceID)
	if err != nil {
		return err
	}

	headers := []interface{}{"Место", "Пользователь", "Очки", "Правильных", "Время, мс"}
	rows := make([][]interface{}, len(results))
	for i, r := range results {
		rows[i] = []interface{}{r.Rank, sanitizeForExcel(r.Username), r.Points, r.CorrectCount, r.TotalTimeMs}
	}
	return writeSheet(w, "Результаты", headers, rows)
}

// WriteLeaderboard пишет лидерборд периода (пустой periodKey — текущий период)
func (s *ExportService) WriteLeaderboard(ctx context.Context, gameSlug, periodType, periodKey string, w io.Writer) error {
	var rows [][]interface{}
	offset := 0
	for offset < maxLeaderboardExportRows {
		page, err := s.leaderboard.GetLeaderboard(ctx, gameSlug, periodType, periodKey, s.leaderboard.maxSize, offset)
		if err != nil {
			return err
		}
		periodKey = page.PeriodKey
		for _, e := range page.Entries {
			rows = append(rows, []interface{}{
				e.Rank, sanitizeForExcel(e.Username), e.TotalPoints, e.BestScore, e.QuizzesPlayed, e.AverageTimeMs,
			})
		}
		offset += len(page.Entries)
		if len(page.Entries) == 0 || int64(offset) >= page.Total {
			break
		}
	}

	headers := []interface{}{"Место", "Пользователь", "Сумма двух лучших", "Лучший результат", "Сыграно", "Среднее время, мс"}
	return writeSheet(w, periodKey, headers, rows)
}

// writeSheet пишет один лист через StreamWriter
func writeSheet(w io.Writer, sheetName string, headers []interface{}, rows [][]interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}

	if err := sw.SetRow("A1", headers); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			log.Printf("[ExportService] Ошибка записи строки %d: %v", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	return f.Write(w)
}

// sanitizeForExcel экранирует данные для защиты от formula injection в Excel
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}
