package parser

// BlockEnd finds the 0-based line index where the block opened at or after
// line start is closed by its matching delimiter. Delimiters inside quoted
// strings and after a "//" comment are ignored. When the delimiters never
// balance, the result is start+fallback clamped to the last line.
func BlockEnd(lines []string, start int, openDelim, closeDelim byte, fallback int) int {
	depth := 0
	opened := false

	for i := start; i < len(lines); i++ {
		line := lines[i]
		var quote byte
		for j := 0; j < len(line); j++ {
			c := line[j]
			if quote != 0 {
				if c == '\\' {
					j++
				} else if c == quote {
					quote = 0
				}
				continue
			}
			switch c {
			case '"', '\'', '`':
				quote = c
			case '/':
				if j+1 < len(line) && line[j+1] == '/' {
					j = len(line)
				}
			case openDelim:
				depth++
				opened = true
			case closeDelim:
				depth--
				if opened && depth == 0 {
					return i
				}
			}
		}
	}

	end := start + fallback
	if end > len(lines)-1 {
		end = len(lines) - 1
	}
	if end < start {
		end = start
	}
	return end
}
