package controlplane

import "strconv"

func formatInt(v int) string { return strconv.Itoa(v) }

// sem notação científica para valores comuns
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
