package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	loandomain "github.com/loantracker/backend/internal/domain/loan"
	"github.com/loantracker/backend/internal/http/respond"
	"github.com/shopspring/decimal"
)

const maxImportSizeBytes = 10 << 20

const dateLayout = "2006-01-02"

type LoanService interface {
	Create(ctx context.Context, in loandomain.CreateInput) (*loandomain.Entity, error)
	Get(ctx context.Context, loanID string) (*loandomain.Entity, error)
	List(ctx context.Context, f loandomain.ListFilter) ([]loandomain.Entity, int64, error)
	Update(ctx context.Context, loanID string, in loandomain.UpdateInput) (*loandomain.Entity, error)
	ExtendDueDate(ctx context.Context, loanID string, newDate time.Time, notes string) (*loandomain.Entity, error)
	UpdateInterest(ctx context.Context, loanID string, additional decimal.Decimal, notes string) (*loandomain.Entity, error)
	MarkCompleted(ctx context.Context, loanID, notes string) (*loandomain.Entity, error)
	SoftDelete(ctx context.Context, loanID string) error
	Statistics(ctx context.Context, ownerID string) (*loandomain.Statistics, error)
	ImportCSV(ctx context.Context, ownerID string, r io.Reader) (*loandomain.ImportResult, error)
}

type LoanHandler struct {
	loanService LoanService
}

func NewLoanHandler(loanService LoanService) *LoanHandler {
	return &LoanHandler{loanService: loanService}
}

func callerIdentity(c *gin.Context) (userID, role string) {
	if v, ok := c.Get("user_id"); ok {
		userID, _ = v.(string)
	}
	if v, ok := c.Get("user_role"); ok {
		role, _ = v.(string)
	}
	return userID, role
}

type createLoanRequest struct {
	BorrowerName   string          `json:"borrower_name" binding:"required"`
	BorrowerEmail  string          `json:"borrower_email"`
	BorrowerPhone  string          `json:"borrower_phone"`
	LoanAmount     decimal.Decimal `json:"loan_amount"`
	InterestAmount decimal.Decimal `json:"interest_amount"`
	LoanGivenDate  string          `json:"loan_given_date" binding:"required"`
	DueDate        string          `json:"due_date" binding:"required"`
	Notes          string          `json:"notes"`
}

func (h *LoanHandler) CreateLoan(c *gin.Context) {
	userID, _ := callerIdentity(c)

	var req createLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid request body")
		return
	}
	givenDate, err := time.Parse(dateLayout, strings.TrimSpace(req.LoanGivenDate))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "loan_given_date must be YYYY-MM-DD")
		return
	}
	dueDate, err := time.Parse(dateLayout, strings.TrimSpace(req.DueDate))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "due_date must be YYYY-MM-DD")
		return
	}

	created, err := h.loanService.Create(c.Request.Context(), loandomain.CreateInput{
		CreatedBy:      userID,
		BorrowerName:   strings.TrimSpace(req.BorrowerName),
		BorrowerEmail:  strings.TrimSpace(req.BorrowerEmail),
		BorrowerPhone:  strings.TrimSpace(req.BorrowerPhone),
		LoanAmount:     req.LoanAmount,
		InterestAmount: req.InterestAmount,
		LoanGivenDate:  givenDate,
		DueDate:        dueDate,
		Notes:          req.Notes,
	})
	if err != nil {
		writeLoanError(c, err)
		return
	}
	respond.JSON(c, http.StatusCreated, "loan created", created)
}

func (h *LoanHandler) ListLoans(c *gin.Context) {
	userID, role := callerIdentity(c)

	page, _ := strconv.ParseInt(strings.TrimSpace(c.DefaultQuery("page", "1")), 10, 32)
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.ParseInt(strings.TrimSpace(c.DefaultQuery("limit", "20")), 10, 32)
	if limit < 1 {
		limit = 20
	}

	owner := userID
	if role == "admin" {
		if strings.EqualFold(c.Query("all"), "true") {
			owner = ""
		} else if scoped := strings.TrimSpace(c.Query("owner_id")); scoped != "" {
			owner = scoped
		}
	}

	f := loandomain.ListFilter{
		OwnerID:  owner,
		Status:   loandomain.Status(strings.TrimSpace(c.Query("status"))),
		Search:   strings.TrimSpace(c.Query("search")),
		SortBy:   strings.TrimSpace(c.Query("sort_by")),
		SortDesc: strings.EqualFold(c.Query("sort_dir"), "desc"),
		Limit:    int32(limit),
		Offset:   int32((page - 1) * limit),
	}
	if v := strings.TrimSpace(c.Query("due_after")); v != "" {
		if t, err := time.Parse(dateLayout, v); err == nil {
			f.DueAfter = &t
		}
	}
	if v := strings.TrimSpace(c.Query("due_before")); v != "" {
		if t, err := time.Parse(dateLayout, v); err == nil {
			f.DueBefore = &t
		}
	}

	items, total, err := h.loanService.List(c.Request.Context(), f)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "failed to list loans")
		return
	}
	respond.List(c, http.StatusOK, "loans retrieved", items, int32(page), int32(limit), total)
}

func (h *LoanHandler) GetLoan(c *gin.Context) {
	e, ok := h.ownedLoan(c)
	if !ok {
		return
	}
	respond.JSON(c, http.StatusOK, "loan retrieved", e)
}

type extendRequest struct {
	NewDueDate string `json:"new_due_date" binding:"required"`
	Notes      string `json:"notes"`
}

func (h *LoanHandler) ExtendDueDate(c *gin.Context) {
	e, ok := h.ownedLoan(c)
	if !ok {
		return
	}
	var req extendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid request body")
		return
	}
	newDate, err := time.Parse(dateLayout, strings.TrimSpace(req.NewDueDate))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "new_due_date must be YYYY-MM-DD")
		return
	}

	updated, err := h.loanService.ExtendDueDate(c.Request.Context(), e.ID, newDate, req.Notes)
	if err != nil {
		writeLoanError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, "due date extended", updated)
}

type interestRequest struct {
	AdditionalInterest decimal.Decimal `json:"additional_interest"`
	Notes              string          `json:"notes"`
}

func (h *LoanHandler) UpdateInterest(c *gin.Context) {
	e, ok := h.ownedLoan(c)
	if !ok {
		return
	}
	var req interestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.loanService.UpdateInterest(c.Request.Context(), e.ID, req.AdditionalInterest, req.Notes)
	if err != nil {
		writeLoanError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, "interest updated", updated)
}

type updateLoanRequest struct {
	BorrowerName       *string          `json:"borrower_name"`
	BorrowerEmail      *string          `json:"borrower_email"`
	BorrowerPhone      *string          `json:"borrower_phone"`
	NewDueDate         *string          `json:"new_due_date"`
	AdditionalInterest *decimal.Decimal `json:"additional_interest"`
	Notes              string           `json:"notes"`
}

func (h *LoanHandler) UpdateLoan(c *gin.Context) {
	e, ok := h.ownedLoan(c)
	if !ok {
		return
	}
	var req updateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid request body")
		return
	}

	in := loandomain.UpdateInput{
		BorrowerName:       req.BorrowerName,
		BorrowerEmail:      req.BorrowerEmail,
		BorrowerPhone:      req.BorrowerPhone,
		AdditionalInterest: req.AdditionalInterest,
		Notes:              req.Notes,
	}
	if req.NewDueDate != nil {
		t, err := time.Parse(dateLayout, strings.TrimSpace(*req.NewDueDate))
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "new_due_date must be YYYY-MM-DD")
			return
		}
		in.NewDueDate = &t
	}

	updated, err := h.loanService.Update(c.Request.Context(), e.ID, in)
	if err != nil {
		writeLoanError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, "loan updated", updated)
}

type completeRequest struct {
	Notes string `json:"notes"`
}

func (h *LoanHandler) MarkCompleted(c *gin.Context) {
	e, ok := h.ownedLoan(c)
	if !ok {
		return
	}
	var req completeRequest
	_ = c.ShouldBindJSON(&req)

	updated, err := h.loanService.MarkCompleted(c.Request.Context(), e.ID, req.Notes)
	if err != nil {
		writeLoanError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, "loan completed", updated)
}

func (h *LoanHandler) DeleteLoan(c *gin.Context) {
	e, ok := h.ownedLoan(c)
	if !ok {
		return
	}
	if err := h.loanService.SoftDelete(c.Request.Context(), e.ID); err != nil {
		writeLoanError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, "loan deleted", nil)
}

func (h *LoanHandler) GetStatistics(c *gin.Context) {
	userID, role := callerIdentity(c)

	owner := userID
	if role == "admin" && strings.EqualFold(c.Query("all"), "true") {
		owner = ""
	}

	stats, err := h.loanService.Statistics(c.Request.Context(), owner)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "failed to compute statistics")
		return
	}
	respond.JSON(c, http.StatusOK, "statistics retrieved", stats)
}

func (h *LoanHandler) ImportLoans(c *gin.Context) {
	userID, _ := callerIdentity(c)

	file, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "missing file")
		return
	}
	if file.Size > maxImportSizeBytes {
		respond.Error(c, http.StatusBadRequest, "file too large")
		return
	}
	src, err := file.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid file")
		return
	}
	defer src.Close()

	result, err := h.loanService.ImportCSV(c.Request.Context(), userID, src)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "import failed")
		return
	}
	if len(result.Errors) > 0 && result.Processed == 0 {
		respond.JSON(c, http.StatusBadRequest, "import rejected", result)
		return
	}
	respond.JSON(c, http.StatusOK, "import processed", result)
}

// ownedLoan loads the path loan and enforces that the caller owns it or is
// an admin. Foreign loans are reported as not found rather than forbidden.
func (h *LoanHandler) ownedLoan(c *gin.Context) (*loandomain.Entity, bool) {
	loanID := strings.TrimSpace(c.Param("loanId"))
	if loanID == "" {
		respond.Error(c, http.StatusBadRequest, "missing loan id")
		return nil, false
	}

	e, err := h.loanService.Get(c.Request.Context(), loanID)
	if err != nil {
		writeLoanError(c, err)
		return nil, false
	}

	userID, role := callerIdentity(c)
	if role != "admin" && e.CreatedBy != userID {
		respond.Error(c, http.StatusNotFound, "loan not found")
		return nil, false
	}
	return e, true
}

func writeLoanError(c *gin.Context, err error) {
	var ve *loandomain.ValidationError
	switch {
	case errors.As(err, &ve):
		respond.Error(c, http.StatusBadRequest, ve.Error())
	case errors.Is(err, loandomain.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "loan not found")
	default:
		respond.Error(c, http.StatusInternalServerError, "internal error")
	}
}
