package ocr

// PagePrompt asks a vision-language backend for a faithful transcription of
// one scanned page. Title lines come back wrapped in angle brackets so the
// document writer can style them as headings.
const PagePrompt = `Extract all text from this scanned page exactly as it appears, preserving the reading order. If a line is a book, chapter or section title, wrap that line in angle brackets, like <Chapter One>. Output only the transcribed text, with no extra commentary.`

// TablePrompt asks a vision-language backend for a tab-separated rendition
// of a photographed table: one line per row, cells separated by tabs.
const TablePrompt = `Recognize the table in this image. Output the table content only: one line per table row, cells separated by tab characters. Do not add any explanation, markdown or extra formatting.`
