package models

import "fmt"

// Level is a CEFR proficiency level (A1 through C2)
type Level string

const (
	LevelA1 Level = "A1"
	LevelA2 Level = "A2"
	LevelB1 Level = "B1"
	LevelB2 Level = "B2"
	LevelC1 Level = "C1"
	LevelC2 Level = "C2"
)

// Levels lists all CEFR levels in ascending order
var Levels = []Level{LevelA1, LevelA2, LevelB1, LevelB2, LevelC1, LevelC2}

// ParseLevel parses a CEFR level string
func ParseLevel(s string) (Level, error) {
	for _, l := range Levels {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("invalid CEFR level: %q", s)
}

// Valid reports whether the level is a known CEFR level
func (l Level) Valid() bool {
	_, err := ParseLevel(string(l))
	return err == nil
}

// Ord returns the ordinal position of the level (A1=0 ... C2=5), or -1 if invalid
func (l Level) Ord() int {
	for i, lv := range Levels {
		if lv == l {
			return i
		}
	}
	return -1
}

// Next returns the next level up, or the same level if already at C2 or invalid
func (l Level) Next() Level {
	i := l.Ord()
	if i < 0 || i >= len(Levels)-1 {
		return l
	}
	return Levels[i+1]
}
