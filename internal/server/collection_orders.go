package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	collectiondomain "github.com/smallbiznis/cobro/internal/collection/domain"
	"github.com/smallbiznis/cobro/pkg/db/pagination"
)

type createCollectionOrderRequest struct {
	CustomerID     string   `json:"customer_id"`
	CycleIDs       []string `json:"cycle_ids"`
	CollectionDate string   `json:"collection_date"`
}

func (s *Server) CreateCollectionOrder(c *gin.Context) {
	var req createCollectionOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	customerID, err := parseID(req.CustomerID)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	cycleIDs, err := parseIDs(req.CycleIDs)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var collectionDate time.Time
	if strings.TrimSpace(req.CollectionDate) != "" {
		collectionDate, err = time.Parse("2006-01-02", req.CollectionDate)
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	order, err := s.collectionSvc.GenerateManualCollection(c.Request.Context(), collectiondomain.ManualCollectionRequest{
		CustomerID:     customerID,
		CycleIDs:       cycleIDs,
		CollectionDate: collectionDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) ListCollectionOrders(c *gin.Context) {
	var query struct {
		CustomerID string `form:"customer_id"`
		Date       string `form:"date"`
		pagination.Pagination
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	filter := collectiondomain.ListOrdersFilter{Page: query.Pagination}
	if strings.TrimSpace(query.CustomerID) != "" {
		id, err := parseID(query.CustomerID)
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		filter.CustomerID = &id
	}
	if strings.TrimSpace(query.Date) != "" {
		day, err := time.Parse("2006-01-02", query.Date)
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		filter.Date = &day
	}

	orders, pageInfo, err := s.collectionSvc.ListOrders(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": orders, "page_info": pageInfo})
}

func (s *Server) GetCollectionOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	order, cycles, err := s.collectionSvc.GetOrder(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"order":  order,
		"cycles": cycles,
	}})
}

func (s *Server) CancelCollectionOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.collectionSvc.CancelOrder(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"cancelled": true}})
}

type attachCyclesRequest struct {
	CycleIDs []string `json:"cycle_ids"`
}

func (s *Server) AttachCollectionCycles(c *gin.Context) {
	orderID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req attachCyclesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	cycleIDs, err := parseIDs(req.CycleIDs)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.collectionSvc.AttachCycles(c.Request.Context(), orderID, cycleIDs); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"attached": len(cycleIDs)}})
}

func (s *Server) CollectionRouteSheet(c *gin.Context) {
	day := time.Now().UTC()
	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		day = parsed
	}
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	var zoneID *snowflake.ID
	if raw := strings.TrimSpace(c.Query("zone_id")); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		zoneID = &id
	}

	rows, err := s.collectionSvc.BuildRouteSheetRows(c.Request.Context(), day, zoneID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rows})
}

func parseID(raw string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(raw))
}

func parseIDs(raw []string) ([]snowflake.ID, error) {
	ids := make([]snowflake.ID, 0, len(raw))
	for _, r := range raw {
		id, err := parseID(r)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
