package farside

import "fmt"

// Stage names the extraction step that rejected the page.
type Stage string

const (
	StageAnchor  Stage = "anchor"
	StageTickers Stage = "tickers"
	StageRows    Stage = "rows"
	StageFilter  Stage = "filter"
)

// ParseError reports a page whose flow table could not be recognized.
type ParseError struct {
	Stage Stage
	Msg   string
}

func (e *ParseError) Error() string {
	return e.Msg
}

// InvalidNumericToken is returned for a value cell that is not a number.
type InvalidNumericToken struct {
	Token string
}

func (e *InvalidNumericToken) Error() string {
	return fmt.Sprintf("Некоректне число у таблиці: %q", e.Token)
}
