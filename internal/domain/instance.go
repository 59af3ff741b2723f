package domain

import "time"

// SeriesInstance is one generated occurrence of a series. Instances are
// ephemeral generator output and are never persisted. Skipped dates do not
// appear at all.
type SeriesInstance struct {
	Date          time.Time
	IsException   bool
	ExceptionType ExceptionType // set only when IsException
	Override      OverrideData  // set only for override exceptions
	// Series is a read-only view of the source series, for field fallback.
	Series *Series
}

// EffectiveFields returns the series base fields shallow-merged with the
// instance's override payload, if any.
func (i *SeriesInstance) EffectiveFields() map[string]any {
	base := i.Series.BaseFields()
	if !i.IsException || len(i.Override) == 0 {
		return base
	}
	for k, v := range i.Override {
		base[k] = v
	}
	return base
}

// EffectiveTitle resolves the display title for this occurrence.
func (i *SeriesInstance) EffectiveTitle() string {
	if i.IsException {
		if t, ok := i.Override["title"].(string); ok && t != "" {
			return t
		}
	}
	return i.Series.Title
}
