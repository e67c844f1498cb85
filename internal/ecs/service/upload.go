package service

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/jimp5978/dshi-field-app/internal/ecs/apperr"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseCodeFile A열(첫 번째 열)의 조립품 코드를 최대 max개 읽는다
func ParseCodeFile(fileName string, data []byte, max int) ([]string, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm":
		return parseXLSXCodes(data, max)
	case ".csv", ".txt":
		return parseCSVCodes(data, max)
	default:
		return nil, apperr.Validation("Excel 파일(.xlsx) 또는 CSV 파일만 업로드 가능합니다")
	}
}

func parseXLSXCodes(data []byte, max int) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "Excel 파일을 읽을 수 없습니다", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperr.Validation("A열에서 Assembly Code를 찾을 수 없습니다")
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() && len(codes) < max {
		cols, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("read columns: %w", err)
		}
		if len(cols) == 0 {
			continue
		}
		if v := strings.TrimSpace(cols[0]); v != "" {
			codes = append(codes, v)
		}
	}
	return codes, nil
}

// decodeText UTF-8이 아니면 EUC-KR(CP949)로 본다
func decodeText(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, nil
	}
	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), korean.EUCKR.NewDecoder()))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "파일 인코딩을 확인할 수 없습니다", err)
	}
	return out, nil
}

func parseCSVCodes(data []byte, max int) ([]string, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(bytes.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var codes []string
	for len(codes) < max {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, "CSV 파일 형식이 올바르지 않습니다", err)
		}
		if len(record) == 0 {
			continue
		}
		if v := strings.TrimSpace(record[0]); v != "" {
			codes = append(codes, v)
		}
	}
	return codes, nil
}

// normalizeCodes 공백 제거, 중복 제거, 순서 유지
func normalizeCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
