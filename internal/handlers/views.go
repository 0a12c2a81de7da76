package handlers

import (
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

var pageViews = []string{
	"auth.html",
	"payment_select.html",
	"payment_pending.html",
	"payment_manual.html",
	"super_admin.html",
	"dashboard.html",
	"add_member.html",
	"fees.html",
	"scanner.html",
	"scan_result.html",
	"member_details.html",
	"edit_fee.html",
	"edit_member.html",
	"settings.html",
	"schedule.html",
	"expenses.html",
	"reports.html",
}

var templateFuncs = template.FuncMap{
	"money": func(currency string, amount float64) string {
		return fmt.Sprintf("%s%.2f", currency, amount)
	},
	"join": strings.Join,
	"percentOf": func(part, whole float64) float64 {
		if whole <= 0 {
			return 0
		}
		return part / whole * 100
	},
}

// parseViews pairs base.html with every page template.
func parseViews(fsys fs.FS) (map[string]*template.Template, error) {
	views := make(map[string]*template.Template, len(pageViews))
	for _, name := range pageViews {
		tmpl, err := template.New("base.html").Funcs(templateFuncs).ParseFS(fsys, "base.html", name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		views[name] = tmpl
	}
	return views, nil
}

const (
	flashSuccess = "success"
	flashInfo    = "info"
	flashError   = "error"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Category string
	Message  string
}

func (h *Handlers) flash(w http.ResponseWriter, r *http.Request, category, msg string) {
	sess, _ := h.flashes.Get(r, flashCookieName)
	sess.AddFlash(msg, category)
	if err := sess.Save(r, w); err != nil {
		h.logger.Warn("failed to save flash", zap.Error(err))
	}
}

func (h *Handlers) takeFlashes(w http.ResponseWriter, r *http.Request) []Flash {
	sess, _ := h.flashes.Get(r, flashCookieName)
	var out []Flash
	for _, category := range []string{flashSuccess, flashInfo, flashError} {
		for _, v := range sess.Flashes(category) {
			if msg, ok := v.(string); ok {
				out = append(out, Flash{Category: category, Message: msg})
			}
		}
	}
	if len(out) > 0 {
		if err := sess.Save(r, w); err != nil {
			h.logger.Warn("failed to clear flashes", zap.Error(err))
		}
	}
	return out
}
