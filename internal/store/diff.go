package store

import (
	"reflect"
	"sort"
	"time"
)

// MatchQuery сообщает, попадает ли документ под фильтр запроса.
func MatchQuery(q Query, doc Document) bool {
	if q.FilterField == "" {
		return true
	}
	return reflect.DeepEqual(doc[q.FilterField], q.FilterValue)
}

// ApplyQuery применяет фильтр, сортировку и лимит запроса к набору документов.
// Используется драйверами, которые держат результат запроса на своей стороне.
func ApplyQuery(q Query, docs []Doc) []Doc {
	result := make([]Doc, 0, len(docs))
	for _, d := range docs {
		if MatchQuery(q, d.Data) {
			result = append(result, d)
		}
	}
	if q.OrderField != "" {
		sort.SliceStable(result, func(i, j int) bool {
			less := compareValues(result[i].Data[q.OrderField], result[j].Data[q.OrderField])
			if q.Desc {
				return !less
			}
			return less
		})
	}
	if q.N > 0 && len(result) > q.N {
		result = result[:q.N]
	}
	return result
}

// DiffResults вычисляет изменения между прошлым и новым результатом запроса.
// Порядок: сначала removed, затем added и modified в порядке нового результата.
func DiffResults(old, cur []Doc) []Change {
	oldByID := make(map[string]Document, len(old))
	for _, d := range old {
		oldByID[d.ID] = d.Data
	}
	curIDs := make(map[string]struct{}, len(cur))
	for _, d := range cur {
		curIDs[d.ID] = struct{}{}
	}

	var changes []Change
	for _, d := range old {
		if _, ok := curIDs[d.ID]; !ok {
			changes = append(changes, Change{Kind: ChangeRemoved, Doc: d})
		}
	}
	for _, d := range cur {
		prev, ok := oldByID[d.ID]
		switch {
		case !ok:
			changes = append(changes, Change{Kind: ChangeAdded, Doc: d})
		case !reflect.DeepEqual(prev, d.Data):
			changes = append(changes, Change{Kind: ChangeModified, Doc: d})
		}
	}
	return changes
}

// compareValues сравнивает значения поля сортировки. Строки в формате RFC3339
// сравниваются как время, прочие строки лексикографически, числа по значению.
func compareValues(a, b any) bool {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		at, aerr := time.Parse(time.RFC3339Nano, as)
		bt, berr := time.Parse(time.RFC3339Nano, bs)
		if aerr == nil && berr == nil {
			return at.Before(bt)
		}
		return as < bs
	}
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		return af < bf
	}
	ta, aok := a.(time.Time)
	tb, bok := b.(time.Time)
	if aok && bok {
		return ta.Before(tb)
	}
	return false
}
