package coordinator

import (
	"strconv"
	"strings"
)

// Chat commands are dash-separated tokens. Several unicode dash variants
// show up in the wild depending on the sender's input method.
var dashes = []rune{'-', '—', '－', '﹣'}

type actionKind int

const (
	actionNone actionKind = iota
	actionDraw
	actionDrawRect
	actionPlay
	actionSkip
)

type action struct {
	kind actionKind

	x, y, color    int // draw
	x0, x1, y0, y1 int // draw rect

	query string // play
}

func splitTokens(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		for _, d := range dashes {
			if r == d {
				return true
			}
		}
		return false
	})
}

func parseNums(tokens []string) ([]int, bool) {
	nums := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		n, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			return nil, false
		}
		nums = append(nums, n)
	}
	return nums, true
}

// parse maps raw chat text to an action. Anything unrecognized is
// actionNone; chat is full of ordinary talk.
func parse(text string) action {
	tokens := splitTokens(strings.TrimSpace(text))
	switch len(tokens) {
	case 0:
		return action{}
	case 1:
		if kw := strings.ToLower(tokens[0]); kw == "skip" || kw == "切歌" {
			return action{kind: actionSkip}
		}
	case 2:
		if kw := strings.ToLower(tokens[0]); kw == "play" || kw == "点歌" {
			return action{kind: actionPlay, query: strings.TrimSpace(tokens[1])}
		}
	}
	if nums, ok := parseNums(tokens); ok {
		switch len(nums) {
		case 3:
			return action{kind: actionDraw, x: nums[0], y: nums[1], color: nums[2]}
		case 5:
			return action{kind: actionDrawRect, x0: nums[0], x1: nums[1], y0: nums[2], y1: nums[3], color: nums[4]}
		}
	}
	return action{}
}
