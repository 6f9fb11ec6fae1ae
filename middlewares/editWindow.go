package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/marutilaminates/laminates_backend/config"
	"github.com/marutilaminates/laminates_backend/models"
	"github.com/marutilaminates/laminates_backend/utils"
)

const (
	CodeTimeAccessRestricted = "TIME_ACCESS_RESTRICTED"
	CodeDateAccessRestricted = "DATE_ACCESS_RESTRICTED"
)

// EditWindow limits non-admin quotation edits to working hours, and to
// quotations created on the current local date. The quotation id is read from
// the :id route param. now is injectable for tests.
func EditWindow(now func() time.Time) gin.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(c *gin.Context) {
		if IsAdmin(c) {
			c.Next()
			return
		}
		cfg := config.GetEditWindowConfig()
		local := now().In(cfg.Location)

		if local.Hour() < cfg.StartHour || local.Hour() >= cfg.EndHour {
			utils.RespondCode(c, http.StatusBadRequest, CodeTimeAccessRestricted,
				fmt.Sprintf("quotations can only be edited between %02d:00 and %02d:00 %s", cfg.StartHour, cfg.EndHour, cfg.Location),
				gin.H{"current_time": local.Format("15:04")})
			return
		}

		createdAt, err := models.QuotationCreatedAt(c.Request.Context(), c.Param("id"))
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		created := createdAt.In(cfg.Location)
		if !sameDate(created, local) {
			utils.RespondCode(c, http.StatusBadRequest, CodeDateAccessRestricted,
				"only quotations created today can be edited",
				gin.H{
					"current_date":           local.Format("2006-01-02"),
					"quotation_created_date": created.Format("2006-01-02"),
				})
			return
		}
		c.Next()
	}
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
