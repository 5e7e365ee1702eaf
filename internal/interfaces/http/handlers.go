package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/expenseflow/backend/internal/application/service"
	"github.com/expenseflow/backend/internal/application/workflow"
	"github.com/expenseflow/backend/internal/domain/entity"
	domainworkflow "github.com/expenseflow/backend/internal/domain/workflow"
	"github.com/expenseflow/backend/pkg/utils"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	companyService  service.CompanyService
	expenseService  service.ExpenseService
	approvalService service.ApprovalService
	ruleSetService  service.RuleSetService
	currencyService *service.CurrencyService
	logger          Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	companyService service.CompanyService,
	expenseService service.ExpenseService,
	approvalService service.ApprovalService,
	ruleSetService service.RuleSetService,
	currencyService *service.CurrencyService,
	logger Logger,
) *Handlers {
	return &Handlers{
		companyService:  companyService,
		expenseService:  expenseService,
		approvalService: approvalService,
		ruleSetService:  ruleSetService,
		currencyService: currencyService,
		logger:          logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

func respondError(c *gin.Context, status int, msg string) {
	c.JSON(status, Response{Success: false, Error: msg})
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	respondOK(c, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	})
}

// CreateCompanyRequest is the payload for company signup
type CreateCompanyRequest struct {
	Name     string `json:"name" binding:"required"`
	Country  string `json:"country"`
	Currency string `json:"currency"`
}

// CreateCompany handles POST /api/companies
func (h *Handlers) CreateCompany(c *gin.Context) {
	var req CreateCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Currency != "" && !utils.ValidCurrencyCode(req.Currency) {
		respondError(c, http.StatusBadRequest, "currency must be a 3-letter code")
		return
	}

	company, err := h.companyService.CreateCompany(c.Request.Context(), req.Name, req.Country, req.Currency)
	if err != nil {
		h.logger.Error("Failed to create company", "error", err)
		respondError(c, http.StatusInternalServerError, "failed to create company")
		return
	}

	respondOK(c, http.StatusCreated, company)
}

// GetCompany handles GET /api/companies/:id
func (h *Handlers) GetCompany(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	company, err := h.companyService.GetCompany(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrCompanyNotFound) {
			respondError(c, http.StatusNotFound, "company not found")
			return
		}
		h.logger.Error("Failed to get company", "id", id, "error", err)
		respondError(c, http.StatusInternalServerError, "failed to retrieve company")
		return
	}

	respondOK(c, http.StatusOK, company)
}

// CreateUserRequest is the payload for adding a user to a company
type CreateUserRequest struct {
	Username          string `json:"username" binding:"required"`
	Email             string `json:"email" binding:"required"`
	Role              string `json:"role"`
	ManagerID         *int64 `json:"manager_id"`
	IsManagerApprover bool   `json:"is_manager_approver"`
}

// CreateUser handles POST /api/companies/:id/users
func (h *Handlers) CreateUser(c *gin.Context) {
	companyID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	user := &entity.User{
		CompanyID:         companyID,
		Username:          req.Username,
		Email:             req.Email,
		Role:              entity.Role(req.Role),
		ManagerID:         req.ManagerID,
		IsManagerApprover: req.IsManagerApprover,
	}

	created, err := h.companyService.CreateUser(c.Request.Context(), user)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCompanyNotFound):
			respondError(c, http.StatusNotFound, "company not found")
		case errors.Is(err, service.ErrUserNotFound):
			respondError(c, http.StatusBadRequest, "manager not found in company")
		default:
			h.logger.Error("Failed to create user", "company_id", companyID, "error", err)
			respondError(c, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	respondOK(c, http.StatusCreated, created)
}

// CreateRuleSetRequest is the payload for defining an approval rule set
type CreateRuleSetRequest struct {
	Name        string    `json:"name" binding:"required"`
	Mode        string    `json:"mode" binding:"required"`
	Steps       [][]int64 `json:"steps"`
	Threshold   float64   `json:"threshold"`
	ApproverIDs []int64   `json:"approver_ids"`
	Activate    bool      `json:"activate"`
}

// CreateRuleSet handles POST /api/companies/:id/rule-sets
func (h *Handlers) CreateRuleSet(c *gin.Context) {
	companyID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req CreateRuleSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	ruleSet := &entity.ApprovalRuleSet{
		CompanyID:   companyID,
		Name:        req.Name,
		Mode:        entity.RuleMode(req.Mode),
		Threshold:   req.Threshold,
		ApproverIDs: req.ApproverIDs,
	}
	for _, approvers := range req.Steps {
		ruleSet.Steps = append(ruleSet.Steps, entity.ApprovalStep{ApproverIDs: approvers})
	}

	created, err := h.ruleSetService.Create(c.Request.Context(), ruleSet, req.Activate)
	if err != nil {
		switch {
		case errors.Is(err, domainworkflow.ErrUnknownRuleMode),
			errors.Is(err, domainworkflow.ErrEmptyRuleSet),
			errors.Is(err, domainworkflow.ErrEmptyStep),
			errors.Is(err, domainworkflow.ErrInvalidThreshold),
			errors.Is(err, domainworkflow.ErrDuplicateApprover),
			errors.Is(err, service.ErrApproverNotEligible):
			respondError(c, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("Failed to create rule set", "company_id", companyID, "error", err)
			respondError(c, http.StatusInternalServerError, "failed to create rule set")
		}
		return
	}

	respondOK(c, http.StatusCreated, created)
}

// GetActiveRuleSet handles GET /api/companies/:id/rule-sets/active
func (h *Handlers) GetActiveRuleSet(c *gin.Context) {
	companyID, ok := pathID(c, "id")
	if !ok {
		return
	}

	ruleSet, err := h.ruleSetService.GetActive(c.Request.Context(), companyID)
	if err != nil {
		if errors.Is(err, service.ErrNoActiveRuleSet) {
			respondError(c, http.StatusNotFound, "no active rule set")
			return
		}
		h.logger.Error("Failed to get active rule set", "company_id", companyID, "error", err)
		respondError(c, http.StatusInternalServerError, "failed to retrieve rule set")
		return
	}

	respondOK(c, http.StatusOK, ruleSet)
}

// ActivateRuleSet handles PUT /api/companies/:id/rule-sets/:rule_set_id/activate
func (h *Handlers) ActivateRuleSet(c *gin.Context) {
	companyID, ok := pathID(c, "id")
	if !ok {
		return
	}
	ruleSetID, ok := pathID(c, "rule_set_id")
	if !ok {
		return
	}

	if err := h.ruleSetService.Activate(c.Request.Context(), companyID, ruleSetID); err != nil {
		if errors.Is(err, workflow.ErrRuleSetNotFound) {
			respondError(c, http.StatusNotFound, "rule set not found")
			return
		}
		h.logger.Error("Failed to activate rule set",
			"company_id", companyID, "rule_set_id", ruleSetID, "error", err)
		respondError(c, http.StatusInternalServerError, "failed to activate rule set")
		return
	}

	respondOK(c, http.StatusOK, gin.H{"rule_set_id": ruleSetID, "active": true})
}

// SubmitExpenseRequest is the payload for an expense submission
type SubmitExpenseRequest struct {
	EmployeeID  int64  `json:"employee_id" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	Currency    string `json:"currency" binding:"required"`
	Category    string `json:"category"`
	Description string `json:"description"`
	ExpenseDate string `json:"expense_date"`
}

// SubmitExpense handles POST /api/expenses
func (h *Handlers) SubmitExpense(c *gin.Context) {
	var req SubmitExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if !utils.ValidCurrencyCode(req.Currency) {
		respondError(c, http.StatusBadRequest, "currency must be a 3-letter code")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid amount")
		return
	}

	expenseDate := time.Now().UTC()
	if req.ExpenseDate != "" {
		expenseDate, err = time.Parse("2006-01-02", req.ExpenseDate)
		if err != nil {
			respondError(c, http.StatusBadRequest, "expense_date must be YYYY-MM-DD")
			return
		}
	}

	expense, err := h.expenseService.Submit(c.Request.Context(), service.SubmitExpenseInput{
		EmployeeID:  req.EmployeeID,
		Amount:      amount,
		Currency:    req.Currency,
		Category:    req.Category,
		Description: req.Description,
		ExpenseDate: expenseDate,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAmount):
			respondError(c, http.StatusBadRequest, "amount must be positive")
		case errors.Is(err, service.ErrUserNotFound):
			respondError(c, http.StatusNotFound, "employee not found")
		case errors.Is(err, service.ErrNoActiveRuleSet):
			respondError(c, http.StatusConflict, "company has no active approval rule set")
		case errors.Is(err, service.ErrUnsupportedCurrency):
			respondError(c, http.StatusBadRequest, "unsupported currency")
		case errors.Is(err, service.ErrRatesUnavailable):
			respondError(c, http.StatusServiceUnavailable, "exchange rates unavailable")
		default:
			h.logger.Error("Failed to submit expense", "employee_id", req.EmployeeID, "error", err)
			respondError(c, http.StatusInternalServerError, "failed to submit expense")
		}
		return
	}

	respondOK(c, http.StatusCreated, expense)
}

// GetExpense handles GET /api/expenses/:id
func (h *Handlers) GetExpense(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	expense, err := h.expenseService.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, workflow.ErrExpenseNotFound) {
			respondError(c, http.StatusNotFound, "expense not found")
			return
		}
		h.logger.Error("Failed to get expense", "id", id, "error", err)
		respondError(c, http.StatusInternalServerError, "failed to retrieve expense")
		return
	}

	respondOK(c, http.StatusOK, expense)
}

// ListExpensesRequest represents query parameters for listing expenses
type ListExpensesRequest struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// ListExpenses handles GET /api/users/:id/expenses
func (h *Handlers) ListExpenses(c *gin.Context) {
	employeeID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req ListExpensesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid query parameters")
		return
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	expenses, err := h.expenseService.ListByEmployee(c.Request.Context(), employeeID, req.Limit, req.Offset)
	if err != nil {
		h.logger.Error("Failed to list expenses", "employee_id", employeeID, "error", err)
		respondError(c, http.StatusInternalServerError, "failed to retrieve expenses")
		return
	}

	respondOK(c, http.StatusOK, expenses)
}

// ListPendingApprovals handles GET /api/users/:id/approvals/pending
func (h *Handlers) ListPendingApprovals(c *gin.Context) {
	approverID, ok := pathID(c, "id")
	if !ok {
		return
	}

	entries, err := h.approvalService.PendingForApprover(c.Request.Context(), approverID)
	if err != nil {
		h.logger.Error("Failed to list pending approvals", "approver_id", approverID, "error", err)
		respondError(c, http.StatusInternalServerError, "failed to retrieve pending approvals")
		return
	}

	respondOK(c, http.StatusOK, entries)
}

// DecisionRequest is the payload for an approve/reject decision
type DecisionRequest struct {
	ApproverID int64  `json:"approver_id" binding:"required"`
	Approved   *bool  `json:"approved" binding:"required"`
	Comment    string `json:"comment"`
}

// DecisionResponse reports the expense status after a decision
type DecisionResponse struct {
	ExpenseID int64  `json:"expense_id"`
	Status    string `json:"status"`
}

// RecordDecision handles POST /api/expenses/:id/decision
func (h *Handlers) RecordDecision(c *gin.Context) {
	expenseID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	status, err := h.approvalService.Decide(c.Request.Context(), expenseID, req.ApproverID, *req.Approved, req.Comment)
	if err != nil {
		switch {
		case errors.Is(err, workflow.ErrExpenseNotFound):
			respondError(c, http.StatusNotFound, "expense not found")
		case errors.Is(err, workflow.ErrNoPendingApproval):
			respondError(c, http.StatusConflict, "no pending approval for this approver")
		default:
			h.logger.Error("Failed to record decision",
				"expense_id", expenseID, "approver_id", req.ApproverID, "error", err)
			respondError(c, http.StatusInternalServerError, "failed to record decision")
		}
		return
	}

	respondOK(c, http.StatusOK, DecisionResponse{
		ExpenseID: expenseID,
		Status:    status.String(),
	})
}

// ListCountries handles GET /api/currency/countries
func (h *Handlers) ListCountries(c *gin.Context) {
	countries, err := h.currencyService.Countries(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrCountriesUnavailable) {
			respondError(c, http.StatusServiceUnavailable, "country metadata unavailable")
			return
		}
		h.logger.Error("Failed to list countries", "error", err)
		respondError(c, http.StatusInternalServerError, "failed to retrieve countries")
		return
	}

	respondOK(c, http.StatusOK, countries)
}

// ConvertResponse reports a single currency conversion
type ConvertResponse struct {
	Amount    string `json:"amount"`
	From      string `json:"from"`
	To        string `json:"to"`
	Converted string `json:"converted"`
}

// ConvertCurrency handles GET /api/currency/convert
func (h *Handlers) ConvertCurrency(c *gin.Context) {
	from := c.Query("from")
	to := c.Query("to")
	if !utils.ValidCurrencyCode(from) || !utils.ValidCurrencyCode(to) {
		respondError(c, http.StatusBadRequest, "from and to must be 3-letter currency codes")
		return
	}

	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid amount")
		return
	}

	converted, err := h.currencyService.Convert(c.Request.Context(), amount, from, to)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnsupportedCurrency):
			respondError(c, http.StatusBadRequest, "unsupported currency pair")
		case errors.Is(err, service.ErrRatesUnavailable):
			respondError(c, http.StatusServiceUnavailable, "exchange rates unavailable")
		default:
			h.logger.Error("Failed to convert currency", "from", from, "to", to, "error", err)
			respondError(c, http.StatusInternalServerError, "conversion failed")
		}
		return
	}

	respondOK(c, http.StatusOK, ConvertResponse{
		Amount:    amount.String(),
		From:      from,
		To:        to,
		Converted: converted.String(),
	})
}
