package features

import "sort"

// UnknownCategoryCode is the reserved code for category values never seen
// at fit time. 운영 중 새 업종/테마가 나타나도 스키마 변경 없이 흡수한다.
const UnknownCategoryCode = -1

// CategoryEncoder maps category values to integer codes per column.
// Fit once on the training corpus, then read-only.
type CategoryEncoder struct {
	Classes map[string]map[string]int `json:"classes"`
}

// NewCategoryEncoder creates an empty encoder.
func NewCategoryEncoder() *CategoryEncoder {
	return &CategoryEncoder{Classes: make(map[string]map[string]int)}
}

// Fit assigns codes 0..n-1 to the sorted unique values of one column.
// 정렬해서 코드를 매기므로 입력 순서와 무관하게 결정적이다.
func (e *CategoryEncoder) Fit(column string, values []string) {
	seen := make(map[string]struct{}, len(values))
	unique := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		unique = append(unique, v)
	}
	sort.Strings(unique)

	codes := make(map[string]int, len(unique))
	for i, v := range unique {
		codes[v] = i
	}
	e.Classes[column] = codes
}

// Encode returns the code for a value. Unknown values (or unknown columns)
// map to UnknownCategoryCode; known reports whether the value was seen at
// fit time.
func (e *CategoryEncoder) Encode(column, value string) (code int, known bool) {
	codes, ok := e.Classes[column]
	if !ok {
		return UnknownCategoryCode, false
	}
	c, ok := codes[value]
	if !ok {
		return UnknownCategoryCode, false
	}
	return c, true
}

// Columns returns the fitted column names.
func (e *CategoryEncoder) Columns() []string {
	cols := make([]string, 0, len(e.Classes))
	for col := range e.Classes {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}
