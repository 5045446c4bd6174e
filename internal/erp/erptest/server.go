// Package erptest provides an in-memory Frappe/ERPNext site for tests. It
// implements the resource and method endpoints the POS client uses, keeps
// every document in memory and records each request so tests can assert on
// what was (or was not) sent.
package erptest

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/diewo77/go-pos/internal/models"
)

// Call is one recorded request.
type Call struct {
	Method string
	Path   string // decoded, without query
	Body   []byte
}

type failure struct {
	status  int
	excType string
	message string
}

// Server is a fake ERP site. Seed it with the Add* helpers before use.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	passwords map[string]string // user -> password
	sessions  map[string]string // sid -> user
	users     map[string]map[string]any
	clusters  map[string]map[string]any
	profiles  map[string]models.POSProfile
	taxes     map[string][]models.TaxDetail // template -> rows
	items     []models.Item
	customers []map[string]any
	invoices  map[string]*models.POSInvoice
	order     []string // invoice creation order
	bundles   map[string]*models.SerialBatchBundle
	openings  map[string]*models.OpeningEntry // user -> open entry
	closings  []models.ClosingEntry
	uploads   []map[string]string
	calls     []Call
	failures  map[string][]failure
	seq       int
	noPrint   bool
}

// New starts a fake site and stops it when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		passwords: map[string]string{},
		sessions:  map[string]string{},
		users:     map[string]map[string]any{},
		clusters:  map[string]map[string]any{},
		profiles:  map[string]models.POSProfile{},
		taxes:     map[string][]models.TaxDetail{},
		invoices:  map[string]*models.POSInvoice{},
		bundles:   map[string]*models.SerialBatchBundle{},
		openings:  map[string]*models.OpeningEntry{},
		failures:  map[string][]failure{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// AddUser registers a login. cluster may be empty.
func (s *Server) AddUser(email, password, fullName, cluster, clusterName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passwords[email] = password
	s.users[email] = map[string]any{"name": email, "email": email, "full_name": fullName, "cluster": cluster}
	if cluster != "" {
		s.clusters[cluster] = map[string]any{"name": cluster, "nama_cluster": clusterName}
	}
}

// AddProfile registers a POS profile.
func (s *Server) AddProfile(p models.POSProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.Name] = p
}

// AddTaxTemplate registers the tax rows applied by a taxes_and_charges template.
func (s *Server) AddTaxTemplate(name string, rows ...models.TaxDetail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taxes[name] = rows
}

// AddItem registers a sellable item with its stock.
func (s *Server) AddItem(it models.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, it)
}

// AddCustomer registers an existing customer.
func (s *Server) AddCustomer(name, customerName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers = append(s.customers, map[string]any{"name": name, "customer_name": customerName})
}

// OpenShift marks a shift open for user without going through the API.
func (s *Server) OpenShift(user, profile string) *models.OpeningEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openShiftLocked(user, profile, nil)
}

// Login returns a session id for user, bypassing the password check.
func (s *Server) Login(user string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	sid := s.nextName("sid")
	s.sessions[sid] = user
	return sid
}

// ExpireSessions invalidates every session.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = map[string]string{}
}

// Invoice returns a copy of the stored invoice, or nil.
func (s *Server) Invoice(name string) *models.POSInvoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[name]
	if !ok {
		return nil
	}
	cp := cloneInvoice(inv)
	return &cp
}

// InvoiceCount returns how many invoices exist.
func (s *Server) InvoiceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.invoices)
}

// DeleteInvoice removes an invoice, making a cached copy stale.
func (s *Server) DeleteInvoice(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.invoices, name)
}

// Bundle returns a copy of the stored bundle, or nil.
func (s *Server) Bundle(name string) *models.SerialBatchBundle {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bundles[name]
	if !ok {
		return nil
	}
	cp := *b
	cp.Entries = append([]models.SerialEntry(nil), b.Entries...)
	return &cp
}

// Closings returns the posted closing entries.
func (s *Server) Closings() []models.ClosingEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ClosingEntry(nil), s.closings...)
}

// Uploads returns the form fields (plus "filename") of every upload.
func (s *Server) Uploads() []map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]string(nil), s.uploads...)
}

// Customer returns the stored customer document, or nil.
func (s *Server) Customer(name string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.customers {
		if c["name"] == name {
			return c
		}
	}
	return nil
}

// Stock returns the remaining stock of an item.
func (s *Server) Stock(code string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it := s.itemLocked(code); it != nil {
		return it.ActualQty
	}
	return 0
}

// Fail makes the next request matching method and path fail with status and
// a Frappe error payload carrying message. Repeated calls queue failures.
func (s *Server) Fail(method, path string, status int, excType, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + path
	s.failures[key] = append(s.failures[key], failure{status: status, excType: excType, message: message})
}

// Calls returns recorded requests whose path contains fragment. An empty
// method matches any method.
func (s *Server) Calls(method, fragment string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if (method == "" || c.Method == method) && strings.Contains(c.Path, fragment) {
			out = append(out, c)
		}
	}
	return out
}

// DisablePrint makes every PDF download fail with a server error.
func (s *Server) DisablePrint() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noPrint = true
}

// ResetCalls forgets recorded requests.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

const (
	pathResource = "/api/resource/"
	pathMethod   = "/api/method/"
	posPage      = "erpnext.selling.page.point_of_sale.point_of_sale."
)

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path, Body: body})

	key := r.Method + " " + r.URL.Path
	if q := s.failures[key]; len(q) > 0 {
		f := q[0]
		s.failures[key] = q[1:]
		writeError(w, f.status, f.excType, f.message)
		return
	}

	if r.URL.Path == pathMethod+"login" {
		s.handleLogin(w, r, body)
		return
	}
	user, ok := s.sessionUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "SessionExpired", "Session expired. Please log in again.")
		return
	}

	switch {
	case strings.HasPrefix(r.URL.Path, pathResource):
		rest := strings.TrimPrefix(r.URL.Path, pathResource)
		doctype, name, _ := strings.Cut(rest, "/")
		s.handleResource(w, r, user, doctype, name, body)
	case strings.HasPrefix(r.URL.Path, pathMethod):
		s.handleMethod(w, r, user, strings.TrimPrefix(r.URL.Path, pathMethod), body)
	default:
		writeError(w, http.StatusNotFound, "DoesNotExistError", "Not found")
	}
}

func (s *Server) sessionUser(r *http.Request) (string, bool) {
	ck, err := r.Cookie("sid")
	if err != nil {
		return "", false
	}
	u, ok := s.sessions[ck.Value]
	return u, ok
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, body []byte) {
	form, _ := url.ParseQuery(string(body))
	usr, pwd := form.Get("usr"), form.Get("pwd")
	if want, ok := s.passwords[usr]; !ok || want != pwd {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid login credentials", "exc_type": "AuthenticationError"})
		return
	}
	sid := s.nextName("sid")
	s.sessions[sid] = usr
	http.SetCookie(w, &http.Cookie{Name: "sid", Value: sid, Path: "/"})
	full, _ := s.users[usr]["full_name"].(string)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Logged In", "full_name": full})
}

func (s *Server) handleResource(w http.ResponseWriter, r *http.Request, user, doctype, name string, body []byte) {
	switch {
	case r.Method == http.MethodGet && name == "":
		s.listDocs(w, r, doctype)
	case r.Method == http.MethodGet:
		doc, ok := s.docLocked(doctype, name)
		if !ok {
			writeError(w, http.StatusNotFound, "DoesNotExistError", fmt.Sprintf("%s %s not found", doctype, name))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": doc})
	case r.Method == http.MethodPost && doctype == models.DoctypeSerialBatchBundle:
		s.insertBundle(w, body)
	case r.Method == http.MethodPost && doctype == models.DoctypePOSInvoice:
		s.insertInvoice(w, user, body)
	case r.Method == http.MethodPut && doctype == models.DoctypePOSInvoice:
		s.updateInvoice(w, name, body)
	case r.Method == http.MethodPost && doctype == models.DoctypePOSClosingEntry:
		s.insertClosing(w, user, body)
	default:
		writeError(w, http.StatusMethodNotAllowed, "ValidationError", "unsupported "+r.Method+" "+doctype)
	}
}

func (s *Server) handleMethod(w http.ResponseWriter, r *http.Request, user, method string, body []byte) {
	var args map[string]any
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") && len(body) > 0 {
		if err := json.Unmarshal(body, &args); err != nil {
			writeError(w, http.StatusBadRequest, "ValidationError", "invalid json")
			return
		}
	}
	if args == nil {
		args = map[string]any{}
	}
	for k, v := range r.URL.Query() {
		args[k] = v[0]
	}

	switch method {
	case "logout":
		if ck, err := r.Cookie("sid"); err == nil {
			delete(s.sessions, ck.Value)
		}
		writeJSON(w, http.StatusOK, map[string]any{})
	case "frappe.auth.get_logged_user":
		writeMessage(w, user)
	case "frappe.client.validate_link":
		doctype, _ := args["doctype"].(string)
		name, _ := args["docname"].(string)
		if _, ok := s.docLocked(doctype, name); ok {
			writeMessage(w, map[string]any{"name": name})
			return
		}
		writeMessage(w, map[string]any{"name": nil})
	case "frappe.client.get":
		doctype, _ := args["doctype"].(string)
		name, _ := args["name"].(string)
		doc, ok := s.docLocked(doctype, name)
		if !ok {
			writeError(w, http.StatusNotFound, "DoesNotExistError", fmt.Sprintf("%s %s not found", doctype, name))
			return
		}
		writeMessage(w, doc)
	case "frappe.desk.search.search_link":
		s.searchLink(w, args)
	case "frappe.client.save":
		s.saveDoc(w, user, args)
	case "upload_file":
		s.upload(w, r, body)
	case "frappe.utils.print_format.download_pdf":
		s.downloadPDF(w, args)
	case posPage + "check_opening_entry":
		u, _ := args["user"].(string)
		var out []models.OpeningEntry
		if e, ok := s.openings[u]; ok {
			out = append(out, *e)
		}
		writeMessage(w, out)
	case posPage + "create_opening_voucher":
		s.createOpening(w, user, args)
	case posPage + "get_items":
		s.getItems(w, args)
	default:
		writeError(w, http.StatusNotFound, "DoesNotExistError", "unknown method "+method)
	}
}

func (s *Server) listDocs(w http.ResponseWriter, r *http.Request, doctype string) {
	q := r.URL.Query()
	var filters [][]any
	if raw := q.Get("filters"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &filters); err != nil {
			writeError(w, http.StatusBadRequest, "ValidationError", "invalid filters")
			return
		}
	}
	var fields []string
	if raw := q.Get("fields"); raw != "" {
		_ = json.Unmarshal([]byte(raw), &fields)
	}
	var rows []map[string]any
	for _, doc := range s.allDocsLocked(doctype) {
		if matches(doc, filters) {
			rows = append(rows, project(doc, fields))
		}
	}
	if strings.Contains(strings.ToLower(q.Get("order_by")), "desc") {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}
	if start, _ := strconv.Atoi(q.Get("limit_start")); start > 0 {
		if start >= len(rows) {
			rows = nil
		} else {
			rows = rows[start:]
		}
	}
	limit := 20
	if raw := q.Get("limit_page_length"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rows})
}

func (s *Server) allDocsLocked(doctype string) []map[string]any {
	var out []map[string]any
	switch doctype {
	case models.DoctypePOSInvoice:
		for _, name := range s.order {
			if inv, ok := s.invoices[name]; ok {
				out = append(out, toMap(inv))
			}
		}
	case models.DoctypeUser:
		out = sortedDocs(s.users)
	case models.DoctypeCluster:
		out = sortedDocs(s.clusters)
	case models.DoctypeCustomer:
		out = append(out, s.customers...)
	case models.DoctypePOSClosingEntry:
		for i := range s.closings {
			out = append(out, toMap(&s.closings[i]))
		}
	}
	return out
}

func (s *Server) docLocked(doctype, name string) (map[string]any, bool) {
	switch doctype {
	case models.DoctypePOSInvoice:
		if inv, ok := s.invoices[name]; ok {
			return toMap(inv), true
		}
	case models.DoctypeSerialBatchBundle:
		if b, ok := s.bundles[name]; ok {
			return toMap(b), true
		}
	case models.DoctypePOSProfile:
		if p, ok := s.profiles[name]; ok {
			return toMap(&p), true
		}
	case models.DoctypeUser:
		doc, ok := s.users[name]
		return doc, ok
	case models.DoctypeCluster:
		doc, ok := s.clusters[name]
		return doc, ok
	case models.DoctypeCustomer:
		for _, c := range s.customers {
			if c["name"] == name {
				return c, true
			}
		}
	case models.DoctypePOSOpeningEntry:
		for _, e := range s.openings {
			if e.Name == name {
				return toMap(e), true
			}
		}
	}
	return nil, false
}

func (s *Server) insertBundle(w http.ResponseWriter, body []byte) {
	var b models.SerialBatchBundle
	if err := json.Unmarshal(body, &b); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "invalid bundle")
		return
	}
	if s.itemLocked(b.ItemCode) == nil {
		writeError(w, http.StatusNotFound, "LinkValidationError", "Could not find Item: "+b.ItemCode)
		return
	}
	if b.TypeOfTransaction != models.TransactionTypeOutward {
		writeError(w, http.StatusExpectationFailed, "ValidationError", "Type of transaction must be Outward")
		return
	}
	if len(b.Entries) == 0 || b.TotalQty != -float64(len(b.Entries)) {
		writeError(w, http.StatusExpectationFailed, "ValidationError", "Total quantity does not match the serial entries")
		return
	}
	seen := map[string]bool{}
	for _, e := range b.Entries {
		if strings.TrimSpace(e.SerialNo) == "" {
			writeError(w, http.StatusExpectationFailed, "ValidationError", fmt.Sprintf("Row #%d: Serial No is mandatory", e.Idx))
			return
		}
		if seen[e.SerialNo] {
			writeError(w, http.StatusExpectationFailed, "ValidationError", "Serial No "+e.SerialNo+" is duplicated")
			return
		}
		seen[e.SerialNo] = true
	}
	b.Name = s.nextName("SABB")
	s.bundles[b.Name] = &b
	writeJSON(w, http.StatusOK, map[string]any{"data": b})
}

func (s *Server) insertInvoice(w http.ResponseWriter, user string, body []byte) {
	var inv models.POSInvoice
	if err := json.Unmarshal(body, &inv); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "invalid invoice")
		return
	}
	if inv.Customer == "" {
		writeError(w, http.StatusExpectationFailed, "MandatoryError", "Customer is mandatory")
		return
	}
	profile, ok := s.profiles[inv.POSProfile]
	if !ok {
		writeError(w, http.StatusExpectationFailed, "LinkValidationError", "Could not find POS Profile: "+inv.POSProfile)
		return
	}
	inv.Name = s.nextName("ACC-PSINV-2026")
	inv.Owner = user
	inv.Company = profile.Company
	inv.Currency = profile.Currency
	inv.DocStatus = models.DocStatusDraft
	inv.Status = models.InvoiceStatusDraft
	inv.PostingDate = "2026-10-16"
	if msg := s.priceLocked(&inv); msg != "" {
		writeError(w, http.StatusExpectationFailed, "ValidationError", msg)
		return
	}
	s.invoices[inv.Name] = &inv
	s.order = append(s.order, inv.Name)
	writeJSON(w, http.StatusOK, map[string]any{"data": inv})
}

func (s *Server) updateInvoice(w http.ResponseWriter, name string, body []byte) {
	cur, ok := s.invoices[name]
	if !ok {
		writeError(w, http.StatusNotFound, "DoesNotExistError", "POS Invoice "+name+" not found")
		return
	}
	if cur.DocStatus != models.DocStatusDraft {
		writeError(w, http.StatusExpectationFailed, "UpdateAfterSubmitError", "Cannot edit a submitted document")
		return
	}
	var patch map[string]json.RawMessage
	if err := json.Unmarshal(body, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "invalid invoice")
		return
	}
	next := cloneInvoice(cur)
	// child tables in the patch replace the stored rows wholesale
	if _, ok := patch["items"]; ok {
		next.Items = nil
	}
	if _, ok := patch["payments"]; ok {
		next.Payments = nil
	}
	// decoding the patch over the copy replaces exactly the sent fields
	if err := json.Unmarshal(body, &next); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "invalid invoice")
		return
	}
	next.Name = cur.Name
	if msg := s.priceLocked(&next); msg != "" {
		writeError(w, http.StatusExpectationFailed, "ValidationError", msg)
		return
	}
	if next.DocStatus == models.DocStatusSubmitted {
		if msg := s.submitLocked(&next); msg != "" {
			writeError(w, http.StatusExpectationFailed, "ValidationError", msg)
			return
		}
	}
	*cur = next
	writeJSON(w, http.StatusOK, map[string]any{"data": next})
}

// priceLocked fills item prices and recomputes totals the way the server
// would. It returns a validation message on failure.
func (s *Server) priceLocked(inv *models.POSInvoice) string {
	seen := map[string]bool{}
	var net, qty, discount float64
	for i := range inv.Items {
		line := &inv.Items[i]
		it := s.itemLocked(line.ItemCode)
		if it == nil {
			return "Could not find Item: " + line.ItemCode
		}
		if seen[line.ItemCode] {
			return fmt.Sprintf("Row #%d: Item %s appears more than once", i+1, line.ItemCode)
		}
		seen[line.ItemCode] = true
		if line.Qty <= 0 {
			return fmt.Sprintf("Row #%d: Quantity must be positive", i+1)
		}
		if line.SerialAndBatchBundle != "" {
			b, ok := s.bundles[line.SerialAndBatchBundle]
			if !ok {
				return "Could not find Serial and Batch Bundle: " + line.SerialAndBatchBundle
			}
			if b.ItemCode != line.ItemCode || b.TotalQty != -line.Qty {
				return fmt.Sprintf("Row #%d: Serial and Batch Bundle %s does not match quantity %v", i+1, b.Name, line.Qty)
			}
		}
		line.Idx = i + 1
		line.ItemName = it.ItemName
		line.UOM = it.UOM
		line.PriceListRate = it.PriceListRate
		line.DiscountAmount = it.DiscountAmount
		line.Rate = it.PriceListRate - it.DiscountAmount
		line.Amount = round2(line.Rate * line.Qty)
		line.NetAmount = line.Amount
		if line.Warehouse == "" {
			line.Warehouse = inv.SetWarehouse
		}
		net += line.Amount
		discount += it.DiscountAmount * line.Qty
		qty += line.Qty
	}
	inv.TotalQty = qty
	inv.Total = round2(net)
	inv.NetTotal = round2(net)
	inv.DiscountAmount = round2(discount)
	inv.Taxes = nil
	var tax float64
	for _, row := range s.taxes[inv.TaxesAndCharges] {
		row.ChargeType = models.ChargeTypeOnNetTotal
		row.TaxAmount = round2(net * row.Rate / 100)
		tax += row.TaxAmount
		row.Total = round2(net + tax)
		inv.Taxes = append(inv.Taxes, row)
	}
	inv.TotalTaxesAndCharges = round2(tax)
	inv.GrandTotal = round2(net + tax)
	inv.RoundedTotal = math.Round(inv.GrandTotal)
	for i := range inv.Payments {
		if inv.DocStatus == models.DocStatusDraft && i == 0 && inv.Payments[i].Amount == 0 {
			inv.Payments[i].Amount = inv.GrandTotal
		}
	}
	return ""
}

func (s *Server) submitLocked(inv *models.POSInvoice) string {
	if len(inv.Items) == 0 {
		return "Items are mandatory"
	}
	if inv.PaidAmount+0.005 < inv.GrandTotal {
		return fmt.Sprintf("Paid amount %.2f is less than grand total %.2f", inv.PaidAmount, inv.GrandTotal)
	}
	for _, line := range inv.Items {
		it := s.itemLocked(line.ItemCode)
		if inv.UpdateStock == 1 && it.ActualQty < line.Qty {
			return fmt.Sprintf("Stock not sufficient for Item %s in Warehouse %s", line.ItemCode, line.Warehouse)
		}
	}
	if inv.UpdateStock == 1 {
		for _, line := range inv.Items {
			s.itemLocked(line.ItemCode).ActualQty -= line.Qty
		}
	}
	inv.Status = models.InvoiceStatusPaid
	inv.InvoiceNumber = fmt.Sprintf("INV-%s", strings.TrimPrefix(inv.Name, "ACC-PSINV-"))
	return ""
}

func (s *Server) insertClosing(w http.ResponseWriter, user string, body []byte) {
	var ce models.ClosingEntry
	if err := json.Unmarshal(body, &ce); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "invalid closing entry")
		return
	}
	var owner string
	for u, e := range s.openings {
		if e.Name == ce.POSOpeningEntry {
			owner = u
		}
	}
	if owner == "" {
		writeError(w, http.StatusExpectationFailed, "ValidationError", "POS Opening Entry "+ce.POSOpeningEntry+" is not open")
		return
	}
	for _, tx := range ce.POSTransactions {
		inv, ok := s.invoices[tx.POSInvoice]
		if !ok || inv.DocStatus != models.DocStatusSubmitted {
			writeError(w, http.StatusExpectationFailed, "ValidationError", "POS Invoice "+tx.POSInvoice+" is not submitted")
			return
		}
	}
	ce.Name = s.nextName("POS-CLO-2026")
	if ce.User == "" {
		ce.User = user
	}
	s.closings = append(s.closings, ce)
	for _, tx := range ce.POSTransactions {
		s.invoices[tx.POSInvoice].ConsolidatedInvoice = ce.Name
	}
	delete(s.openings, owner)
	writeJSON(w, http.StatusOK, map[string]any{"data": ce})
}

func (s *Server) createOpening(w http.ResponseWriter, user string, args map[string]any) {
	name, _ := args["pos_profile"].(string)
	if _, ok := s.profiles[name]; !ok {
		writeError(w, http.StatusExpectationFailed, "LinkValidationError", "Could not find POS Profile: "+name)
		return
	}
	if _, ok := s.openings[user]; ok {
		writeError(w, http.StatusExpectationFailed, "ValidationError", "An opening entry already exists for "+user)
		return
	}
	var balances []models.BalanceDetail
	if raw, _ := args["balance_details"].(string); raw != "" {
		var rows []struct {
			ModeOfPayment string `json:"mode_of_payment"`
			OpeningAmount string `json:"opening_amount"`
		}
		if err := json.Unmarshal([]byte(raw), &rows); err != nil {
			writeError(w, http.StatusBadRequest, "ValidationError", "invalid balance_details")
			return
		}
		for _, row := range rows {
			amt, _ := strconv.ParseFloat(row.OpeningAmount, 64)
			balances = append(balances, models.BalanceDetail{ModeOfPayment: row.ModeOfPayment, OpeningAmount: amt})
		}
	}
	writeMessage(w, s.openShiftLocked(user, name, balances))
}

func (s *Server) openShiftLocked(user, profile string, balances []models.BalanceDetail) *models.OpeningEntry {
	e := &models.OpeningEntry{
		Name:            s.nextName("POS-OPE-2026"),
		POSProfile:      profile,
		Company:         s.profiles[profile].Company,
		User:            user,
		PeriodStartDate: "2026-10-16 08:00:00",
		BalanceDetails:  balances,
	}
	s.openings[user] = e
	cp := *e
	return &cp
}

func (s *Server) getItems(w http.ResponseWriter, args map[string]any) {
	term, _ := args["search_term"].(string)
	term = strings.ToLower(term)
	start := intArg(args["start"])
	length := intArg(args["page_length"])
	var matched []models.Item
	for _, it := range s.items {
		if term == "" || strings.Contains(strings.ToLower(it.ItemCode), term) || strings.Contains(strings.ToLower(it.ItemName), term) {
			matched = append(matched, it)
		}
	}
	if start >= len(matched) {
		matched = nil
	} else {
		matched = matched[start:]
	}
	if length > 0 && len(matched) > length {
		matched = matched[:length]
	}
	if matched == nil {
		matched = []models.Item{}
	}
	writeMessage(w, map[string]any{"items": matched})
}

func (s *Server) searchLink(w http.ResponseWriter, args map[string]any) {
	doctype, _ := args["doctype"].(string)
	txt, _ := args["txt"].(string)
	txt = strings.ToLower(txt)
	length := intArg(args["page_length"])
	var out []models.CustomerRef
	switch doctype {
	case models.DoctypePOSProfile:
		filters, _ := args["filters"].(map[string]any)
		company, _ := filters["company"].(string)
		names := make([]string, 0, len(s.profiles))
		for name := range s.profiles {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if company == "" || s.profiles[name].Company == company {
				out = append(out, models.CustomerRef{Value: name, Description: s.profiles[name].Company})
			}
		}
	case models.DoctypeCustomer:
		for _, c := range s.customers {
			name, _ := c["name"].(string)
			display, _ := c["customer_name"].(string)
			if txt == "" || strings.Contains(strings.ToLower(name), txt) || strings.Contains(strings.ToLower(display), txt) {
				out = append(out, models.CustomerRef{Value: name, Description: display})
			}
		}
	}
	if length > 0 && len(out) > length {
		out = out[:length]
	}
	if out == nil {
		out = []models.CustomerRef{}
	}
	writeMessage(w, out)
}

func (s *Server) saveDoc(w http.ResponseWriter, user string, args map[string]any) {
	doc, _ := args["doc"].(map[string]any)
	if doc == nil || doc["doctype"] != models.DoctypeCustomer {
		writeError(w, http.StatusExpectationFailed, "ValidationError", "only Customer documents can be saved")
		return
	}
	if name, _ := doc["customer_name"].(string); strings.TrimSpace(name) == "" {
		writeError(w, http.StatusExpectationFailed, "MandatoryError", "Customer Name is mandatory")
		return
	}
	saved := map[string]any{}
	for k, v := range doc {
		saved[k] = v
	}
	saved["name"] = s.nextName("CUST-2026")
	saved["owner"] = user
	delete(saved, "__islocal")
	delete(saved, "__unsaved")
	s.customers = append(s.customers, saved)
	writeMessage(w, saved)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request, body []byte) {
	req := r.Clone(r.Context())
	req.Body = io.NopCloser(strings.NewReader(string(body)))
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "invalid upload")
		return
	}
	fh, ok := req.MultipartForm.File["file"]
	if !ok || len(fh) == 0 {
		writeError(w, http.StatusExpectationFailed, "ValidationError", "No file attached")
		return
	}
	rec := map[string]string{"filename": fh[0].Filename}
	for k, v := range req.MultipartForm.Value {
		rec[k] = v[0]
	}
	s.uploads = append(s.uploads, rec)
	prefix := "/files/"
	if rec["is_private"] == "1" {
		prefix = "/private/files/"
	}
	writeMessage(w, map[string]any{
		"name":      s.nextName("FILE"),
		"file_name": fh[0].Filename,
		"file_url":  prefix + fh[0].Filename,
	})
}

func (s *Server) downloadPDF(w http.ResponseWriter, args map[string]any) {
	name, _ := args["name"].(string)
	if s.noPrint {
		writeError(w, http.StatusInternalServerError, "PrintFormatError", "Print format not available")
		return
	}
	if _, ok := s.invoices[name]; !ok {
		writeError(w, http.StatusNotFound, "DoesNotExistError", "POS Invoice "+name+" not found")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	fmt.Fprintf(w, "%%PDF-1.4\n%% %s %s\n%%%%EOF\n", name, args["format"])
}

func (s *Server) itemLocked(code string) *models.Item {
	for i := range s.items {
		if s.items[i].ItemCode == code {
			return &s.items[i]
		}
	}
	return nil
}

func (s *Server) nextName(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%05d", prefix, s.seq)
}

func matches(doc map[string]any, filters [][]any) bool {
	for _, f := range filters {
		if len(f) != 3 {
			return false
		}
		field, _ := f[0].(string)
		op, _ := f[1].(string)
		got := fmt.Sprint(valueOrEmpty(doc[field]))
		want := fmt.Sprint(valueOrEmpty(f[2]))
		switch op {
		case "=":
			if got != want {
				return false
			}
		case "!=":
			if got == want {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func valueOrEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}

func project(doc map[string]any, fields []string) map[string]any {
	if len(fields) == 0 || (len(fields) == 1 && fields[0] == "*") {
		return doc
	}
	out := map[string]any{"name": doc["name"]}
	for _, f := range fields {
		out[f] = doc[f]
	}
	return out
}

func sortedDocs(m map[string]map[string]any) []map[string]any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

func toMap(v any) map[string]any {
	raw, _ := json.Marshal(v)
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	return m
}

func cloneInvoice(inv *models.POSInvoice) models.POSInvoice {
	cp := *inv
	cp.Items = append([]models.InvoiceItem(nil), inv.Items...)
	cp.Payments = append([]models.PaymentDetail(nil), inv.Payments...)
	cp.Taxes = append([]models.TaxDetail(nil), inv.Taxes...)
	return cp
}

func intArg(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func writeMessage(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, map[string]any{"message": v})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with the Frappe failure envelope, including the doubly
// encoded _server_messages list.
func writeError(w http.ResponseWriter, status int, excType, message string) {
	inner, _ := json.Marshal(map[string]any{"message": message, "indicator": "red"})
	outer, _ := json.Marshal([]string{string(inner)})
	writeJSON(w, status, map[string]any{
		"exc_type":         excType,
		"exception":        "frappe.exceptions." + excType + ": " + message,
		"_server_messages": string(outer),
	})
}
