package chart

// Stack is the cumulative layout of stacked series over a full year grid.
// Lower[i][j] and Upper[i][j] bound series i in year Years[j].
type Stack struct {
	Years []int
	Lower [][]float64
	Upper [][]float64
}

// StackSeries stacks series in order over every year from the earliest to the
// latest. Missing years contribute 0 and negative values are clamped to 0.
func StackSeries(series []Series) Stack {
	minYear, maxYear, ok := yearBounds(series)
	if !ok {
		return Stack{}
	}
	years := make([]int, 0, maxYear-minYear+1)
	for y := minYear; y <= maxYear; y++ {
		years = append(years, y)
	}

	running := make([]float64, len(years))
	st := Stack{Years: years}
	for _, s := range series {
		contrib := make([]float64, len(years))
		for i, y := range s.Years {
			if v := s.Values[i]; v > 0 {
				contrib[y-minYear] += v
			}
		}
		lower := make([]float64, len(years))
		upper := make([]float64, len(years))
		for j := range years {
			lower[j] = running[j]
			running[j] += contrib[j]
			upper[j] = running[j]
		}
		st.Lower = append(st.Lower, lower)
		st.Upper = append(st.Upper, upper)
	}
	return st
}

func yearBounds(series []Series) (int, int, bool) {
	first := true
	var minYear, maxYear int
	for _, s := range series {
		for _, y := range s.Years {
			if first || y < minYear {
				minYear = y
			}
			if first || y > maxYear {
				maxYear = y
			}
			first = false
		}
	}
	return minYear, maxYear, !first
}
