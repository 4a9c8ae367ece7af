package main

import (
	"fmt"
	"os"
	"strconv"
)

type point struct {
	x, y int
}

//go:noinline
func sum(values []int) int {
	var buf [64]int
	n := copy(buf[:], values)
	total := 0
	for _, v := range buf[:n] {
		total += v
	}
	return total
}

//go:noinline
func midpoint(a, b point) point {
	return point{(a.x + b.x) / 2, (a.y + b.y) / 2}
}

//go:noinline
func describe(p point) string {
	return "(" + strconv.Itoa(p.x) + ", " + strconv.Itoa(p.y) + ")"
}

func main() {
	values := make([]int, 0, len(os.Args))
	for _, arg := range os.Args[1:] {
		v, err := strconv.Atoi(arg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		values = append(values, v)
	}
	p := midpoint(point{0, 0}, point{sum(values), len(values)})
	fmt.Println(describe(p))
}
