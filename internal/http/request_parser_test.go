package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func TestParseMonthParams(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    string
		wantErr bool
	}{
		{"defaults to now", "", "2024-03", false},
		{"explicit", "year=2023&month=11", "2023-11", false},
		{"year only", "year=2022", "2022-03", false},
		{"whitespace trimmed", "month=+7+", "2024-07", false},
		{"year-month form", "year=1999&month=2023-11", "2023-11", false},
		{"bad year-month form", "month=2023-13", "", true},
		{"month out of range", "month=13", "", true},
		{"non numeric", "year=abc", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatalf("ParseQuery: %v", err)
			}
			got, err := ParseMonthParams(q, fixedNow)
			if tt.wantErr {
				if !errors.Is(err, errBadRequest) {
					t.Fatalf("error = %v, want bad request", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMonthParams() error = %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseMonthParams() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseYearParam(t *testing.T) {
	if y, err := ParseYearParam(url.Values{}, fixedNow); err != nil || y != 2024 {
		t.Fatalf("default = %d, %v", y, err)
	}
	if y, err := ParseYearParam(url.Values{"year": {"2021"}}, fixedNow); err != nil || y != 2021 {
		t.Fatalf("explicit = %d, %v", y, err)
	}
	for _, bad := range []string{"0", "10000", "x"} {
		if _, err := ParseYearParam(url.Values{"year": {bad}}, fixedNow); !errors.Is(err, errBadRequest) {
			t.Errorf("year=%s: error = %v, want bad request", bad, err)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name        string
		contentType string
		body        string
		wantErr     string
	}{
		{"valid", "application/json", `{"name":"a"}`, ""},
		{"charset allowed", "application/json; charset=utf-8", `{"name":"a"}`, ""},
		{"no content type", "", `{"name":"a"}`, ""},
		{"form rejected", "application/x-www-form-urlencoded", "name=a", "content type"},
		{"unknown field", "application/json", `{"name":"a","extra":1}`, "unknown field"},
		{"trailing object", "application/json", `{"name":"a"}{"name":"b"}`, "single JSON object"},
		{"empty", "application/json", "", "empty body"},
		{"too large", "application/json", `{"name":"` + strings.Repeat("x", maxBodyBytes) + `"}`, "exceeds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			if tt.contentType != "" {
				r.Header.Set("Content-Type", tt.contentType)
			}
			var p payload
			err := DecodeJSON(httptest.NewRecorder(), r, &p)
			if tt.wantErr == "" {
				if err != nil || p.Name != "a" {
					t.Fatalf("DecodeJSON() = %+v, %v", p, err)
				}
				return
			}
			if !errors.Is(err, errBadRequest) || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
