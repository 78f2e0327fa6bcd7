package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"hypeledger/internal/catalog"
	"hypeledger/internal/ledger"
	"hypeledger/pkg/response"
)

// Handler exposes the ledger engine over HTTP.
type Handler struct {
	engine *ledger.Engine
}

func NewHandler(engine *ledger.Engine) *Handler {
	return &Handler{engine: engine}
}

// ============================================================
// Queries
// ============================================================

// GetBalance
// GET /api/v1/balance?user_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	balance, err := h.engine.Balance(c.Request.Context(), c.Query("user_id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, balance)
}

// ListTransactions
// GET /api/v1/transactions?user_id=xxx&page=1&page_size=20
func (h *Handler) ListTransactions(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		response.ParamError(c, "page must be a positive integer")
		return
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(ledger.DefaultHistoryLimit)))
	if err != nil || pageSize < 1 || pageSize > ledger.MaxHistoryLimit {
		response.ParamError(c, "page_size must be between 1 and "+strconv.Itoa(ledger.MaxHistoryLimit))
		return
	}

	txns, total, err := h.engine.History(c.Request.Context(), c.Query("user_id"), pageSize, (page-1)*pageSize)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      txns,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetTransaction
// GET /api/v1/transactions/:id?user_id=xxx
func (h *Handler) GetTransaction(c *gin.Context) {
	txn, err := h.engine.Transaction(c.Request.Context(), c.Query("user_id"), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, txn)
}

// GetEarningOpportunities
// GET /api/v1/earn/opportunities?user_id=xxx
func (h *Handler) GetEarningOpportunities(c *gin.Context) {
	rules, err := h.engine.EarningOpportunities(c.Request.Context(), c.Query("user_id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	list := make([]earningRuleView, 0, len(rules))
	for _, r := range rules {
		list = append(list, newEarningRuleView(r))
	}
	response.Success(c, gin.H{"list": list})
}

// GetCatalog
// GET /api/v1/catalog
func (h *Handler) GetCatalog(c *gin.Context) {
	cat := h.engine.Catalog()

	rules := make([]earningRuleView, 0)
	for _, r := range cat.EarningRules() {
		rules = append(rules, newEarningRuleView(r))
	}
	options := make([]spendingOptionView, 0)
	for _, o := range cat.SpendingOptions() {
		options = append(options, spendingOptionView{
			ID:              o.ID,
			Category:        o.Category,
			Cost:            o.Cost,
			Tier:            string(o.Tier),
			Description:     o.Description,
			CooldownSeconds: int64(o.Cooldown / time.Second),
		})
	}
	packages := make([]purchasePackageView, 0)
	for _, p := range cat.PurchasePackages() {
		packages = append(packages, purchasePackageView{
			ID:          p.ID,
			HypeAmount:  p.HypeAmount,
			Bonus:       p.Bonus,
			TotalHype:   p.TotalHype(),
			Price:       p.Price.StringFixed(2),
			Description: p.Description,
		})
	}

	response.Success(c, gin.H{
		"earning_rules":     rules,
		"spending_options":  options,
		"purchase_packages": packages,
	})
}

// GetSustainability
// GET /api/v1/sustainability
func (h *Handler) GetSustainability(c *gin.Context) {
	response.Success(c, h.engine.Sustainability())
}

// ============================================================
// Mutations
// ============================================================

type EarnRequest struct {
	UserID   string                 `json:"user_id" binding:"required"`
	RuleID   string                 `json:"rule_id" binding:"required"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Earn
// POST /api/v1/earn
func (h *Handler) Earn(c *gin.Context) {
	var req EarnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.engine.Earn(c.Request.Context(), req.UserID, req.RuleID, req.Metadata)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

type SpendRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	OptionID string `json:"option_id" binding:"required"`
	UsePaid  bool   `json:"use_paid"`
}

// Spend
// POST /api/v1/spend
func (h *Handler) Spend(c *gin.Context) {
	var req SpendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.engine.Spend(c.Request.Context(), req.UserID, req.OptionID, req.UsePaid)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

// PurchaseRequest carries the payment processor's reference; retrying with
// the same payment_ref never credits twice.
type PurchaseRequest struct {
	UserID     string `json:"user_id" binding:"required"`
	PackageID  string `json:"package_id" binding:"required"`
	PaymentRef string `json:"payment_ref" binding:"required"`
}

// Purchase
// POST /api/v1/purchase
func (h *Handler) Purchase(c *gin.Context) {
	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.engine.Purchase(c.Request.Context(), req.UserID, req.PackageID, req.PaymentRef)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

type GiftRequest struct {
	FromUserID string `json:"from_user_id" binding:"required"`
	ToUserID   string `json:"to_user_id" binding:"required"`
	Amount     int64  `json:"amount" binding:"required,gt=0"`
	Message    string `json:"message" binding:"max=256"`
}

// Gift
// POST /api/v1/gift
func (h *Handler) Gift(c *gin.Context) {
	var req GiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.engine.Gift(c.Request.Context(), req.FromUserID, req.ToUserID, req.Amount, req.Message)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

// ============================================================
// Views
// ============================================================

type multiplierView struct {
	Condition string `json:"condition"`
	Factor    string `json:"factor"`
}

type earningRuleView struct {
	ID          string           `json:"id"`
	Category    string           `json:"category"`
	Amount      int64            `json:"amount"`
	Frequency   string           `json:"frequency"`
	Description string           `json:"description"`
	Conditions  []string         `json:"conditions,omitempty"`
	Multipliers []multiplierView `json:"multipliers,omitempty"`
}

func newEarningRuleView(r catalog.EarningRule) earningRuleView {
	v := earningRuleView{
		ID:          r.ID,
		Category:    r.Category,
		Amount:      r.Amount,
		Frequency:   string(r.Frequency),
		Description: r.Description,
		Conditions:  r.Conditions,
	}
	for _, m := range r.Multipliers {
		v.Multipliers = append(v.Multipliers, multiplierView{Condition: m.Condition, Factor: m.Factor.String()})
	}
	return v
}

type spendingOptionView struct {
	ID              string `json:"id"`
	Category        string `json:"category"`
	Cost            int64  `json:"cost"`
	Tier            string `json:"tier"`
	Description     string `json:"description"`
	CooldownSeconds int64  `json:"cooldown_seconds,omitempty"`
}

type purchasePackageView struct {
	ID          string `json:"id"`
	HypeAmount  int64  `json:"hype_amount"`
	Bonus       int64  `json:"bonus"`
	TotalHype   int64  `json:"total_hype"`
	Price       string `json:"price"`
	Description string `json:"description"`
}
