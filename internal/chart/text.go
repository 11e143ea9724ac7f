package chart

import (
	"math"
	"strings"
	"unicode/utf8"
)

const ellipsis = "…"

// TextWidth estimates the rendered width of s in pixels at fontPx.
func TextWidth(s string, fontPx float64) int {
	return int(math.Ceil(float64(utf8.RuneCountInString(s)) * fontPx * 0.6))
}

// TruncateToWidth cuts s so it fits maxPx, ending it with an ellipsis when
// anything was dropped.
func TruncateToWidth(s string, fontPx float64, maxPx int) string {
	var out []rune
	for _, ch := range s {
		next := string(append(out, ch))
		if TextWidth(next, fontPx) > maxPx {
			if len(out) == 0 {
				return ""
			}
			if TextWidth(string(out)+ellipsis, fontPx) <= maxPx {
				return string(out) + ellipsis
			}
			if len(out) > 1 {
				return string(out[:len(out)-1]) + ellipsis
			}
			return string(out)
		}
		out = append(out, ch)
	}
	return string(out)
}

// WrapToWidth breaks s on whitespace into lines no wider than maxPx. Words
// longer than a line are split by character. Very narrow widths truncate.
func WrapToWidth(s string, fontPx float64, maxPx int) []string {
	if maxPx <= 12 {
		return []string{TruncateToWidth(s, fontPx, maxPx)}
	}
	var lines []string
	cur := ""
	for _, word := range strings.Fields(s) {
		candidate := word
		if cur != "" {
			candidate = cur + " " + word
		}
		switch {
		case TextWidth(candidate, fontPx) <= maxPx:
			cur = candidate
		case cur == "":
			lines = append(lines, hardBreak(word, fontPx, maxPx)...)
		default:
			lines = append(lines, cur)
			cur = word
		}
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}

func hardBreak(word string, fontPx float64, maxPx int) []string {
	var lines []string
	buf := ""
	for _, ch := range word {
		candidate := buf + string(ch)
		if TextWidth(candidate, fontPx) <= maxPx {
			buf = candidate
			continue
		}
		if buf == "" {
			return append(lines, TruncateToWidth(word, fontPx, maxPx))
		}
		lines = append(lines, buf)
		buf = string(ch)
	}
	if buf != "" {
		lines = append(lines, buf)
	}
	return lines
}
