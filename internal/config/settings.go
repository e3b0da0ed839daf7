// Package config loads the statically typed settings document and the
// process environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Comments holds one template per outcome. Placeholders are written as
// {author}, {move}, {outcome}, {players}, {num_moves} and {num_players}.
type Comments struct {
	SuccessfulNewGame string `yaml:"successful_new_game" validate:"required"`
	InvalidNewGame    string `yaml:"invalid_new_game" validate:"required"`
	NoActiveGame      string `yaml:"no_active_game" validate:"required"`
	SuccessfulMove    string `yaml:"successful_move" validate:"required"`
	InvalidMove       string `yaml:"invalid_move" validate:"required"`
	ConsecutiveMoves  string `yaml:"consecutive_moves" validate:"required"`
	InvalidBoard      string `yaml:"invalid_board" validate:"required"`
	UnknownCommand    string `yaml:"unknown_command" validate:"required"`
	GameOver          string `yaml:"game_over" validate:"required"`
}

// Marker delimits a generated section of the README. End defaults to Begin
// with "BEGIN" replaced by "END".
type Marker struct {
	Begin string `yaml:"begin" validate:"required"`
	End   string `yaml:"end"`
}

type Markers struct {
	Board     Marker `yaml:"board"`
	Moves     Marker `yaml:"moves"`
	Turn      Marker `yaml:"turn"`
	LastMoves Marker `yaml:"last_moves"`
	TopMoves  Marker `yaml:"top_moves"`
}

type Labels struct {
	Invalid string `yaml:"invalid"`
	Capture string `yaml:"capture"`
	White   string `yaml:"white"`
	Black   string `yaml:"black"`
	Winner  string `yaml:"winner"`
	Draw    string `yaml:"draw"`
}

// Issues configures the pre-filled issue links rendered in the README
type Issues struct {
	Link    string `yaml:"link"`
	Move    string `yaml:"move"`
	NewGame string `yaml:"new_game"`
}

// Outcomes maps an outcome category to the phrase used in game-over comments
type Outcomes struct {
	WhiteWins string `yaml:"white_wins"`
	BlackWins string `yaml:"black_wins"`
	Draw      string `yaml:"draw"`
	Unknown   string `yaml:"unknown"`
}

type Misc struct {
	MaxTopMoves  int `yaml:"max_top_moves" validate:"gte=0"`
	MaxLastMoves int `yaml:"max_last_moves" validate:"gte=0"`
}

// Settings is the full settings document
type Settings struct {
	Comments Comments          `yaml:"comments"`
	Markers  Markers           `yaml:"markers"`
	Labels   Labels            `yaml:"labels"`
	Issues   Issues            `yaml:"issues"`
	Outcomes Outcomes          `yaml:"outcomes"`
	Misc     Misc              `yaml:"misc"`
	Images   map[string]string `yaml:"images"`
}

// DefaultImages maps FEN piece letters and '.' to board image paths
var DefaultImages = map[string]string{
	"r": "img/black/rook.png",
	"n": "img/black/knight.png",
	"b": "img/black/bishop.png",
	"q": "img/black/queen.png",
	"k": "img/black/king.png",
	"p": "img/black/pawn.png",
	"R": "img/white/rook.png",
	"N": "img/white/knight.png",
	"B": "img/white/bishop.png",
	"Q": "img/white/queen.png",
	"K": "img/white/king.png",
	"P": "img/white/pawn.png",
	".": "img/blank.png",
}

// LoadSettings reads and validates the settings file
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	return ParseSettings(data)
}

// ParseSettings decodes a settings document, applies defaults and rejects
// documents missing a required template or marker.
func ParseSettings(data []byte) (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	s.applyDefaults()
	if err := validate.Struct(&s); err != nil {
		return nil, fmt.Errorf("invalid settings: %s", ValidationDetails(err))
	}
	return &s, nil
}

func (s *Settings) applyDefaults() {
	def := func(v *string, d string) {
		if *v == "" {
			*v = d
		}
	}

	def(&s.Labels.Invalid, "Invalid")
	def(&s.Labels.Capture, "⚔️ Capture!")
	def(&s.Labels.White, "White")
	def(&s.Labels.Black, "Black")
	def(&s.Labels.Winner, "👑 Winner!")
	def(&s.Labels.Draw, "👑 Draw!")

	def(&s.Issues.Link, "https://github.com/{repo}/issues/new?title={params}")
	def(&s.Issues.Move, "Chess: Move {source} to {dest}")
	def(&s.Issues.NewGame, "Chess: Start new game")

	def(&s.Outcomes.WhiteWins, "White wins")
	def(&s.Outcomes.BlackWins, "Black wins")
	def(&s.Outcomes.Draw, "It's a draw")
	def(&s.Outcomes.Unknown, "UNKNOWN")

	if s.Misc.MaxTopMoves == 0 {
		s.Misc.MaxTopMoves = 5
	}
	if s.Misc.MaxLastMoves == 0 {
		s.Misc.MaxLastMoves = 10
	}

	for _, m := range []*Marker{&s.Markers.Board, &s.Markers.Moves, &s.Markers.Turn, &s.Markers.LastMoves, &s.Markers.TopMoves} {
		if m.End == "" {
			m.End = strings.Replace(m.Begin, "BEGIN", "END", 1)
		}
	}

	if s.Images == nil {
		s.Images = make(map[string]string, len(DefaultImages))
	}
	for k, v := range DefaultImages {
		if _, ok := s.Images[k]; !ok {
			s.Images[k] = v
		}
	}
}

// Format substitutes {key} placeholders in tmpl. pairs alternate key and
// value; unknown placeholders are left as written.
func Format(tmpl string, pairs ...string) string {
	if len(pairs)%2 != 0 {
		pairs = pairs[:len(pairs)-1]
	}
	args := make([]string, 0, len(pairs))
	for i := 0; i < len(pairs); i += 2 {
		args = append(args, "{"+pairs[i]+"}", pairs[i+1])
	}
	return strings.NewReplacer(args...).Replace(tmpl)
}

// MoveLink returns the pre-filled issue URL for a move from source to dest
func (s *Settings) MoveLink(repo, source, dest string) string {
	title := Format(s.Issues.Move, "source", strings.ToUpper(source), "dest", strings.ToUpper(dest))
	return Format(s.Issues.Link, "repo", repo, "params", url.QueryEscape(title))
}

// NewGameLink returns the pre-filled issue URL for starting a match
func (s *Settings) NewGameLink(repo string) string {
	return Format(s.Issues.Link, "repo", repo, "params", url.QueryEscape(s.Issues.NewGame))
}

// ValidationDetails flattens validator errors into one readable line
func ValidationDetails(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}

	var details strings.Builder
	for _, e := range errs {
		if details.Len() > 0 {
			details.WriteString("; ")
		}
		switch e.Tag() {
		case "required":
			details.WriteString(fmt.Sprintf("%s is required", e.Namespace()))
		case "oneof":
			details.WriteString(fmt.Sprintf("%s must be one of [%s]", e.Namespace(), e.Param()))
		case "gte", "min":
			if e.Kind() == reflect.String {
				details.WriteString(fmt.Sprintf("%s must be at least %s characters", e.Namespace(), e.Param()))
			} else {
				details.WriteString(fmt.Sprintf("%s must be at least %s", e.Namespace(), e.Param()))
			}
		default:
			details.WriteString(fmt.Sprintf("%s failed %s validation", e.Namespace(), e.Tag()))
		}
	}
	return details.String()
}
