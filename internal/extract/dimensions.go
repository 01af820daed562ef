package extract

import "github.com/hurou927/hydro-catalog/internal/ndarray"

func timed(period string) bool {
	switch period {
	case "hourly", "daily", "monthly", "weekly":
		return true
	}
	return false
}

// AdjustDimensions reshapes a gridded result to the rank implied by the
// entry: [time?, z?, y, x] with an ensemble axis first when the dataset has
// one. Periods other than hourly, daily, monthly and weekly count as static
// and carry no time axis. Missing axes are added with size 1; extra
// leading axes of the raw file layout are folded or dropped.
func AdjustDimensions(data *ndarray.Tensor, period string, hasZ, hasEnsemble bool) *ndarray.Tensor {
	want := 2
	if timed(period) {
		want++
	}
	if hasZ {
		want++
	}
	if hasEnsemble {
		want++
	}

	have := data.Rank()
	switch {
	case want > have:
		return data.Expand(want)
	case want == have:
		return data
	}

	if hasZ {
		if have == 4 && !timed(period) {
			return data.Take(0, 0)
		}
		return data
	}
	switch {
	case have == 3 && !timed(period):
		return data.Take(0, 0)
	case have == 4 && !timed(period):
		return data.Take(0, 0).Take(0, 0)
	case have == 4:
		// [files, steps, y, x] folds into [time, y, x].
		s := data.Shape
		out, _ := data.Reshape(s[0]*s[1], s[2], s[3])
		return out
	case have == 5 && period == "hourly":
		return data.Take(0, 0).Take(1, 0)
	}
	return data
}
