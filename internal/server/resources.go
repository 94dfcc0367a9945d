package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	financedomain "github.com/smallbiznis/fintrack/internal/finance/domain"
	"github.com/smallbiznis/fintrack/internal/validation"
)

// resourceGates are extra handlers run before a resource's routes.
type resourceGates struct {
	Read   []gin.HandlerFunc
	Create []gin.HandlerFunc
	Write  []gin.HandlerFunc
}

// registerResource mounts list/get/create/update/delete for one record type.
// Create runs Write gates and then Create gates.
func registerResource[T any](g *gin.RouterGroup, path string, res financedomain.Resource[T], gates resourceGates) {
	create := append(append([]gin.HandlerFunc{}, gates.Write...), gates.Create...)

	g.GET(path, chain(gates.Read, listResource(res))...)
	g.GET(path+"/:id", chain(gates.Read, getResource(res))...)
	g.POST(path, chain(create, createResource(res))...)
	g.PUT(path+"/:id", chain(gates.Write, updateResource(res))...)
	g.DELETE(path+"/:id", chain(gates.Write, deleteResource(res))...)
}

func chain(gates []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(gates)+1)
	out = append(out, gates...)
	return append(out, h)
}

func listResource[T any](res financedomain.Resource[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}

		filter, err := parseFilter(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		items, err := res.List(c.Request.Context(), userID, filter)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if items == nil {
			items = []T{}
		}

		c.JSON(http.StatusOK, gin.H{"data": items})
	}
}

func getResource[T any](res financedomain.Resource[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		id, err := pathID(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		item, err := res.Get(c.Request.Context(), userID, id)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": item})
	}
}

func createResource[T any](res financedomain.Resource[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}

		var rec T
		if err := c.ShouldBindJSON(&rec); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}

		created, err := res.Create(c.Request.Context(), userID, &rec)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"data": created})
	}
}

func updateResource[T any](res financedomain.Resource[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		id, err := pathID(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		var rec T
		if err := c.ShouldBindJSON(&rec); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}

		updated, err := res.Update(c.Request.Context(), userID, id, &rec)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": updated})
	}
}

func deleteResource[T any](res financedomain.Resource[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		id, err := pathID(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		if err := res.Delete(c.Request.Context(), userID, id); err != nil {
			AbortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id.String(), "deleted": true}})
	}
}

// ApplySavingsTransaction deposits into or withdraws from a savings account.
func (s *Server) ApplySavingsTransaction(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, err := pathID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req financedomain.SavingsTransaction
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	balance, err := s.financeSvc.ApplySavingsTransaction(c.Request.Context(), userID, id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"id":              id.String(),
		"current_balance": balance,
	}})
}

// pathID parses the :id segment; a malformed id cannot name an owned row.
func pathID(c *gin.Context) (snowflake.ID, error) {
	id, err := parseOptionalSnowflakeID(c.Param("id"))
	if err != nil || id == nil {
		return 0, ErrNotFound
	}
	return *id, nil
}

func parseFilter(c *gin.Context) (financedomain.Filter, error) {
	var query struct {
		From          string `form:"from"`
		To            string `form:"to"`
		Category      string `form:"category"`
		BankAccountID string `form:"bank_account_id"`
		Month         string `form:"month"`
		Year          string `form:"year"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		return financedomain.Filter{}, invalidRequestError()
	}

	filter := financedomain.Filter{
		From:     strings.TrimSpace(query.From),
		To:       strings.TrimSpace(query.To),
		Category: strings.TrimSpace(query.Category),
	}

	bankAccountID, err := parseOptionalSnowflakeID(query.BankAccountID)
	if err != nil {
		return filter, validation.Invalid("bank_account_id", "invalid bank_account_id")
	}
	if bankAccountID != nil {
		filter.BankAccountID = *bankAccountID
	}

	if filter.Month, err = parseOptionalIntParam(query.Month); err != nil {
		return filter, validation.Invalid("month", "invalid month")
	}
	if filter.Year, err = parseOptionalIntParam(query.Year); err != nil {
		return filter, validation.Invalid("year", "invalid year")
	}
	return filter, nil
}

func parseOptionalIntParam(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	return strconv.Atoi(trimmed)
}
