package queryir

// MapColumns returns a copy of p with every column reference rewritten
// by fn. Values are never touched.
func MapColumns(p Predicate, fn func(string) string) Predicate {
	switch pred := p.(type) {
	case nil:
		return nil
	case Equals:
		pred.Column = fn(pred.Column)
		return pred
	case NotEquals:
		pred.Column = fn(pred.Column)
		return pred
	case Compare:
		pred.Column = fn(pred.Column)
		return pred
	case IsNull:
		pred.Column = fn(pred.Column)
		return pred
	case IsNotNull:
		pred.Column = fn(pred.Column)
		return pred
	case In:
		pred.Column = fn(pred.Column)
		return pred
	case NotIn:
		pred.Column = fn(pred.Column)
		return pred
	case And:
		return And{Predicates: mapAll(pred.Predicates, fn)}
	case Or:
		return Or{Predicates: mapAll(pred.Predicates, fn)}
	default:
		return p
	}
}

func mapAll(preds []Predicate, fn func(string) string) []Predicate {
	out := make([]Predicate, len(preds))
	for i, p := range preds {
		out[i] = MapColumns(p, fn)
	}
	return out
}

// Columns returns every column referenced by p in traversal order.
func Columns(p Predicate) []string {
	var out []string
	MapColumns(p, func(c string) string {
		out = append(out, c)
		return c
	})
	return out
}

// Conjoin combines predicates with And, dropping nils. A single predicate
// is returned as is.
func Conjoin(preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return And{Predicates: kept}
	}
}
