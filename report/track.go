package report

import (
	"strconv"
	"unicode/utf8"
)

const MaxDescriptionLength = 500

// Track is one row of the per-track metrics export.
type Track struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Plays       int    `json:"plays"`
	Likes       int    `json:"likes"`
	Reposts     int    `json:"reposts"`
	Comments    int    `json:"comments"`
	Downloads   int    `json:"downloads"`
	UploadDate  string `json:"upload_date"`
	Duration    string `json:"duration"`
	Genre       string `json:"genre"`
	Tags        string `json:"tags"`
	Description string `json:"description"`
}

func SumPlays(tracks []Track) int {
	total := 0
	for _, t := range tracks {
		total += t.Plays
	}
	return total
}

func SumLikes(tracks []Track) int {
	total := 0
	for _, t := range tracks {
		total += t.Likes
	}
	return total
}

// FormatDuration renders milliseconds as M:SS.
func FormatDuration(ms int64) string {
	if ms <= 0 {
		return ""
	}

	seconds := ms / 1000
	minutes := seconds / 60
	secs := seconds % 60

	s := strconv.FormatInt(secs, 10)
	if secs < 10 {
		s = "0" + s
	}

	return strconv.FormatInt(minutes, 10) + ":" + s
}

func DateOnly(ts string) string {
	if len(ts) < 10 {
		return ts
	}
	return ts[:10]
}

func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	runes := []rune(s)
	return string(runes[:n])
}
