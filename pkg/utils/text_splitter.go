package utils

import (
	"path/filepath"
	"strings"
	"unicode"
)

const (
	DefaultChunkSize    = 1024
	DefaultChunkOverlap = 200
)

var extensionLanguage = map[string]string{
	".py": "python", ".js": "javascript", ".ts": "typescript", ".jsx": "javascript",
	".tsx": "typescript", ".java": "java", ".cpp": "cpp", ".c": "c", ".h": "c",
	".cs": "csharp", ".php": "php", ".rb": "ruby", ".go": "go", ".swift": "swift",
	".kt": "kotlin", ".rs": "rust", ".scala": "scala", ".sh": "bash",
	".html": "html", ".css": "css", ".sql": "sql", ".json": "json",
	".yaml": "yaml", ".yml": "yaml", ".tmpl": "go", ".xml": "xml",
}

var proseExtensions = map[string]bool{".txt": true, ".md": true}

var excludedDirs = map[string]bool{
	"node_modules": true, "__pycache__": true, "venv": true, ".git": true,
	".idea": true, ".vscode": true, "dist": true, "build": true,
}

// LanguageFor maps a file path to a source language, or "" for prose and unknown files.
func LanguageFor(path string) string {
	return extensionLanguage[strings.ToLower(filepath.Ext(path))]
}

// Indexable reports whether a file is code or prose worth embedding.
func Indexable(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, code := extensionLanguage[ext]
	return code || proseExtensions[ext]
}

func ExcludedDir(name string) bool {
	return excludedDirs[name]
}

// SplitText splits a long string into chunks of approximately 'chunkSize' characters.
// It includes an 'overlap' to preserve context at boundaries, and moves each cut back to
// the nearest paragraph, line or word break in the last fifth of the chunk.
func SplitText(text string, chunkSize int, overlap int) []string {
	runes := []rune(text)
	totalLen := len(runes)
	if totalLen <= chunkSize {
		return []string{text}
	}

	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize // fallback if overlap >= chunkSize
	}

	var chunks []string
	for i := 0; i < totalLen; {
		end := i + chunkSize
		if end >= totalLen {
			chunks = append(chunks, string(runes[i:]))
			break
		}
		end = softBreak(runes, i, end)
		chunks = append(chunks, string(runes[i:end]))

		next := end - overlap
		if next <= i {
			next = i + step
			if next > end {
				next = end
			}
		}
		i = next
	}
	return chunks
}

func softBreak(runes []rune, start, end int) int {
	floor := end - (end-start)/5
	for j := end - 1; j > floor; j-- {
		if runes[j] == '\n' {
			return j + 1
		}
	}
	for j := end - 1; j > floor; j-- {
		if unicode.IsSpace(runes[j]) {
			return j + 1
		}
	}
	return end
}

// SplitCode groups whole lines into chunks of at most chunkSize characters, repeating the
// trailing lines of a chunk (up to overlap characters) at the start of the next one.
// Lines longer than chunkSize are cut with SplitText.
func SplitCode(code string, chunkSize, overlap int) []string {
	if runeLen(code) <= chunkSize {
		return []string{code}
	}

	var chunks, current []string
	size, fresh := 0, 0 // fresh counts lines not yet part of an emitted chunk

	emit := func() {
		chunks = append(chunks, strings.Join(current, ""))
		keep, kept := len(current), 0
		for keep > 1 && kept+runeLen(current[keep-1]) <= overlap {
			keep--
			kept += runeLen(current[keep])
		}
		current = append([]string(nil), current[keep:]...)
		size, fresh = kept, 0
	}

	for _, line := range strings.SplitAfter(code, "\n") {
		if line == "" {
			continue
		}
		n := runeLen(line)
		if n > chunkSize {
			if fresh > 0 {
				emit()
			}
			chunks = append(chunks, SplitText(line, chunkSize, overlap)...)
			current, size, fresh = nil, 0, 0
			continue
		}
		if size+n > chunkSize && fresh > 0 {
			emit()
		}
		for size+n > chunkSize && len(current) > 0 {
			size -= runeLen(current[0])
			current = current[1:]
		}
		current = append(current, line)
		size += n
		fresh++
	}
	if fresh > 0 {
		chunks = append(chunks, strings.Join(current, ""))
	}
	return chunks
}

func runeLen(s string) int {
	return len([]rune(s))
}
