package service

import (
	"regexp"
	"strings"
)

const paragraphsPerPage = 2

// pageMarkerRe matches the marker token at the start of a marker line:
// the word, a label that looks like a page number and the separator after it.
// Цифры отделяются пробелом или знаком, римские и словесные номера только
// знаком или концом строки ("Page one of the diary" остается текстом).
var pageMarkerRe = regexp.MustCompile(`^(?:PAGE|Page) +(?:` +
	`\d+(?:` + markerSeparator + `|[ \t]+|$)|` +
	`(?i:[ivxlc]+|` + numberWords + `)(?:` + markerSeparator + `|[ \t]*$))`)

const (
	markerSeparator = `[ \t]*[:.\-\x{2013}\x{2014}][ \t]*`
	numberWords     = `one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|` +
		`thirteen|fourteen|fifteen|sixteen|seventeen|eighteen|nineteen|twenty`
)

var blankLineRe = regexp.MustCompile(`\n[ \t]*\n`)

func isPageMarker(line string) bool {
	trimmed := strings.TrimLeft(line, " \t")
	return strings.HasPrefix(trimmed, "PAGE ") || strings.HasPrefix(trimmed, "Page ")
}

func stripPageMarker(line string) string {
	trimmed := strings.TrimLeft(line, " \t")
	loc := pageMarkerRe.FindStringIndex(trimmed)
	if loc == nil {
		// Нет номера: срезаем только "PAGE ".
		return trimmed[len("PAGE "):]
	}
	return trimmed[loc[1]:]
}

// SplitIntoPages режет сгенерированный текст на страницы.
//
// Если хотя бы одна строка начинается с "PAGE " или "Page ", каждая такая строка
// открывает новую страницу, а сам маркер вырезается. Текст до первого маркера
// становится отдельной первой страницей, если он не пустой. Иначе текст режется
// на абзацы, по два абзаца на страницу.
//
// Пустой ввод дает ноль страниц, любой непустой - хотя бы одну.
func SplitIntoPages(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}

	lines := strings.Split(text, "\n")
	for _, line := range lines {
		if isPageMarker(line) {
			if pages := splitByMarkers(lines); len(pages) > 0 {
				return pages
			}
			// Одни маркеры без текста: режем как обычный текст.
			break
		}
	}
	return splitByParagraphs(text)
}

func splitByMarkers(lines []string) []string {
	var pages []string
	var current strings.Builder

	flush := func() {
		if page := strings.TrimSpace(current.String()); page != "" {
			pages = append(pages, page)
		}
		current.Reset()
	}

	for _, line := range lines {
		if isPageMarker(line) {
			flush()
			line = stripPageMarker(line)
		}
		current.WriteString(line)
		current.WriteByte('\n')
	}
	flush()

	return pages
}

func splitByParagraphs(text string) []string {
	var paragraphs []string
	for _, p := range blankLineRe.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	pages := make([]string, 0, (len(paragraphs)+paragraphsPerPage-1)/paragraphsPerPage)
	for i := 0; i < len(paragraphs); i += paragraphsPerPage {
		end := min(i+paragraphsPerPage, len(paragraphs))
		pages = append(pages, strings.Join(paragraphs[i:end], "\n\n"))
	}
	return pages
}
