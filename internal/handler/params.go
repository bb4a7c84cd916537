package handler

import (
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
)

// queryInt reads an integer query parameter, falling back to def when absent or malformed
func queryInt(c *app.RequestContext, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func queryBool(c *app.RequestContext, key string) bool {
	b, _ := strconv.ParseBool(c.Query(key))
	return b
}
