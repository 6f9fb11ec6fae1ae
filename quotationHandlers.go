package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/marutilaminates/laminates_backend/config"
	"github.com/marutilaminates/laminates_backend/models"
	"github.com/marutilaminates/laminates_backend/models/reports"
	"github.com/marutilaminates/laminates_backend/utils"
	"github.com/marutilaminates/laminates_backend/workflow"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type quotationResponse struct {
	Quotation *models.Quotation `json:"quotation"`
	PDFURL    string            `json:"pdf_url,omitempty"`
	Note      string            `json:"note,omitempty"`
}

type quotationHandlers struct {
	wf  *workflow.QuotationWorkflow
	now func() time.Time
}

func newQuotationHandlers(wf *workflow.QuotationWorkflow, now func() time.Time) *quotationHandlers {
	if now == nil {
		now = time.Now
	}
	return &quotationHandlers{wf: wf, now: now}
}

func (h *quotationHandlers) register(g *gin.RouterGroup, admin gin.HandlerFunc, editWindow gin.HandlerFunc) {
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/export", h.export)
	g.GET("/:id", h.get)
	g.PUT("/:id", editWindow, h.update)
	g.PATCH("/:id/shared-date", h.markShared)
	g.POST("/:id/regenerate-pdf", h.regenerate)
	g.DELETE("/:id", admin, h.remove)
}

func currentUserID(c *gin.Context) *string {
	if id, ok := utils.GetUserIdFromContext(c.Request.Context()); ok && id != "" {
		return &id
	}
	return nil
}

func respondOutcome(c *gin.Context, status int, verb string, out *workflow.Outcome) {
	message := fmt.Sprintf("Quotation %s successfully with PDF", verb)
	if out.RenderErr != nil {
		message = fmt.Sprintf("Quotation %s successfully (%s)", verb, workflow.NotePDFFailed)
	}
	utils.RespondOK(c, status, message, quotationResponse{
		Quotation: out.Quotation,
		PDFURL:    out.PDFURL,
		Note:      out.Note,
	})
}

func (h *quotationHandlers) create(c *gin.Context) {
	var input models.NewQuotation
	uploads, err := bindQuotationRequest(c, &input)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	out, err := h.wf.Create(c.Request.Context(), &input, uploads, currentUserID(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	respondOutcome(c, http.StatusCreated, "created", out)
}

func (h *quotationHandlers) update(c *gin.Context) {
	var input models.UpdateQuotation
	uploads, err := bindQuotationRequest(c, &input)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	out, err := h.wf.Update(c.Request.Context(), c.Param("id"), &input, uploads, currentUserID(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	respondOutcome(c, http.StatusOK, "updated", out)
}

func (h *quotationHandlers) list(c *gin.Context) {
	var filter models.QuotationFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		utils.RespondError(c, bindError(err))
		return
	}
	page, err := bindPage(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	result, err := models.ListQuotations(c.Request.Context(), filter, page)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondOK(c, http.StatusOK, "Quotations retrieved successfully", result)
}

func (h *quotationHandlers) get(c *gin.Context) {
	q, err := models.GetQuotation(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondOK(c, http.StatusOK, "Quotation retrieved successfully", quotationResponse{
		Quotation: q,
		PDFURL:    h.wf.PDFURL(q),
	})
}

func (h *quotationHandlers) markShared(c *gin.Context) {
	q, err := h.wf.MarkShared(c.Request.Context(), c.Param("id"), h.now())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondOK(c, http.StatusOK, "Last shared date updated successfully", quotationResponse{Quotation: q})
}

func (h *quotationHandlers) regenerate(c *gin.Context) {
	out, err := h.wf.RegeneratePDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondOK(c, http.StatusOK, "PDF regenerated successfully", quotationResponse{
		Quotation: out.Quotation,
		PDFURL:    out.PDFURL,
	})
}

func (h *quotationHandlers) remove(c *gin.Context) {
	q, err := h.wf.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondOK(c, http.StatusOK, "Quotation deleted successfully", quotationResponse{Quotation: q})
}

func (h *quotationHandlers) public(c *gin.Context) {
	out, err := h.wf.GetPublic(c.Request.Context(), c.Param("id"), h.now())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondOK(c, http.StatusOK, "Quotation details retrieved successfully", quotationResponse{
		Quotation: out.Quotation,
		PDFURL:    out.PDFURL,
	})
}

func (h *quotationHandlers) export(c *gin.Context) {
	var filter models.QuotationFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		utils.RespondError(c, bindError(err))
		return
	}
	f, err := reports.ExportQuotations(c.Request.Context(), filter)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("quotations_%s.xlsx", h.now().Format("20060102_150405"))
	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		config.LogError(config.GetLogger(), "main", "quotationHandlers.export", "write xlsx", filter, err)
	}
}
