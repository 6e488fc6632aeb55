package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/capbudget/portfolio/api/v1alpha1"
	"github.com/capbudget/portfolio/pkg/core"
)

const catalogCSV = `id,name,cost,benefit,region,exclusive_group,requires,labour,social_score
P1,School,40,9,North,,,3,0.2
P2,Bridge north,30,7,North,bridge,,1,0.9
P3,Bridge south,20,4,South,bridge,P4,0,0.5
P4,Access road,10,2,South,,,2,0.1
P5,Clinic,25,6,East,,,1,0.4
P6,Clinic annex,35,8,East,,P5,2,0.3
P7,Park,15,3,West,,,1,0.8
P8,School annex,50,10,West,,P1,4,0.6
`

type fixture struct {
	cost, labour float64
	region       string
	group        string
	requires     []string
}

var fixtures = map[string]fixture{
	"P1": {cost: 40, labour: 3, region: "North"},
	"P2": {cost: 30, labour: 1, region: "North", group: "bridge"},
	"P3": {cost: 20, labour: 0, region: "South", group: "bridge", requires: []string{"P4"}},
	"P4": {cost: 10, labour: 2, region: "South"},
	"P5": {cost: 25, labour: 1, region: "East"},
	"P6": {cost: 35, labour: 2, region: "East", requires: []string{"P5"}},
	"P7": {cost: 15, labour: 1, region: "West"},
	"P8": {cost: 50, labour: 4, region: "West", requires: []string{"P1"}},
}

func call(method, path, contentType string, body io.Reader) (int, []byte) {
	req, err := http.NewRequest(method, baseURL+path, body)
	ExpectWithOffset(2, err).NotTo(HaveOccurred())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := client.Do(req)
	ExpectWithOffset(2, err).NotTo(HaveOccurred())
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	ExpectWithOffset(2, err).NotTo(HaveOccurred())
	return resp.StatusCode, data
}

func postJSON(path, body string) (int, []byte) {
	return call(http.MethodPost, path, "application/json", strings.NewReader(body))
}

func solve(body string) v1alpha1.SolveResponse {
	code, data := postJSON(apiPath("/solve"), body)
	ExpectWithOffset(1, code).To(Equal(http.StatusOK), string(data))
	var resp v1alpha1.SolveResponse
	ExpectWithOffset(1, json.Unmarshal(data, &resp)).To(Succeed())
	return resp
}

func apiPath(path string) string {
	return "/api/v1alpha1" + path
}

var _ = Describe("Portfolio API", Ordered, func() {
	BeforeAll(func() {
		By("importing the catalog as a CSV upload")
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("file", "projects.csv")
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write([]byte(catalogCSV))
		Expect(err).NotTo(HaveOccurred())
		Expect(mw.Close()).To(Succeed())

		code, data := call(http.MethodPost, apiPath("/catalog/import"), mw.FormDataContentType(), &body)
		Expect(code).To(Equal(http.StatusOK), string(data))

		var doc v1alpha1.CatalogDocument
		Expect(json.Unmarshal(data, &doc)).To(Succeed())
		Expect(doc.Projects).To(HaveLen(len(fixtures)))
	})

	It("should return a ranked pool of distinct selections that respect every constraint", func() {
		resp := solve(`{
			"budget": 100,
			"resource_caps": {"labour": 6},
			"regional_quota": {"East": {"max": 1}},
			"pool_size": 5
		}`)

		Expect(resp.Status).To(Equal("Optimal"))
		Expect(resp.RequestedPoolSize).To(Equal(5))
		Expect(resp.AchievedPoolSize).To(Equal(5))
		Expect(resp.Partial).To(BeFalse())
		Expect(resp.Pool).To(HaveLen(5))
		Expect(resp.SelectedIDs).To(Equal(resp.Pool[0].SelectedIDs))

		seen := map[string]bool{}
		for i, s := range resp.Pool {
			Expect(s.Rank).To(Equal(i + 1))
			if i > 0 {
				Expect(s.Objective).To(BeNumerically("<=", resp.Pool[i-1].Objective+1e-9))
			}
			key := core.FormatRequires(s.SelectedIDs)
			Expect(seen).NotTo(HaveKey(key), "duplicate selection %s", key)
			seen[key] = true

			selected := map[string]bool{}
			for _, id := range s.SelectedIDs {
				selected[id] = true
			}
			var cost, labour float64
			groups := map[string]int{}
			regions := map[string]int{}
			for id := range selected {
				f := fixtures[id]
				cost += f.cost
				labour += f.labour
				regions[f.region]++
				if f.group != "" {
					groups[f.group]++
				}
				for _, r := range f.requires {
					Expect(selected).To(HaveKey(r), "%s requires %s", id, r)
				}
			}
			Expect(cost).To(BeNumerically("<=", 100))
			Expect(labour).To(BeNumerically("<=", 6))
			Expect(regions["East"]).To(BeNumerically("<=", 1))
			for g, n := range groups {
				Expect(n).To(BeNumerically("<=", 1), "group %s", g)
			}
		}
	})

	It("should reject a quota that no selection can meet", func() {
		code, data := postJSON(apiPath("/solve"), `{"budget": 100, "regional_quota": {"South": {"min": 3}}}`)
		Expect(code).To(Equal(http.StatusUnprocessableEntity))

		var resp v1alpha1.ErrorResponse
		Expect(json.Unmarshal(data, &resp)).To(Succeed())
		Expect(resp.Reason).To(Equal(v1alpha1.ReasonConfiguration))
		Expect(resp.Details).NotTo(BeEmpty())
		Expect(resp.Details[0].Field).To(Equal("regional_quota[South]"))
	})

	It("should select nothing on a zero budget", func() {
		resp := solve(`{"budget": 0}`)
		Expect(resp.Status).To(Equal("Optimal"))
		Expect(resp.SelectedIDs).To(BeEmpty())
		Expect(resp.Objective).To(BeZero())
	})

	It("should apply a named profile under the request", func() {
		resp := solve(`{"budget": 60}`)
		Expect(resp.RequestedPoolSize).To(Equal(1))

		code, data := postJSON(apiPath("/solve?profile=wide"), `{"budget": 60}`)
		Expect(code).To(Equal(http.StatusOK), string(data))
		var wide v1alpha1.SolveResponse
		Expect(json.Unmarshal(data, &wide)).To(Succeed())
		Expect(wide.RequestedPoolSize).To(Equal(5))

		code, data = postJSON(apiPath("/solve?profile=wide"), `{"budget": 60, "pool_size": 0}`)
		Expect(code).To(Equal(http.StatusOK), string(data))
		var single v1alpha1.SolveResponse
		Expect(json.Unmarshal(data, &single)).To(Succeed())
		Expect(single.RequestedPoolSize).To(Equal(1))
	})

	It("should serve the last result", func() {
		resp := solve(`{"budget": 50, "pool_size": 2}`)

		code, data := call(http.MethodGet, apiPath("/solve/last"), "", nil)
		Expect(code).To(Equal(http.StatusOK))
		var last v1alpha1.SolveResponse
		Expect(json.Unmarshal(data, &last)).To(Succeed())
		Expect(last.RequestID).To(Equal(resp.RequestID))
		Expect(last.Pool).To(Equal(resp.Pool))
	})

	It("should report an exhausted pool as complete", func() {
		code, data := call(http.MethodPut, apiPath("/catalog"), "application/json", strings.NewReader(`{"projects": [
			{"id": "A", "cost": 10, "benefit": 5, "region": "North", "exclusive_group": "g"},
			{"id": "B", "cost": 10, "benefit": 4, "region": "North", "exclusive_group": "g"},
			{"id": "C", "cost": 10, "benefit": 3, "region": "South"}
		]}`))
		Expect(code).To(Equal(http.StatusOK), string(data))

		resp := solve(`{"budget": 10, "pool_size": 10}`)
		Expect(resp.Status).To(Equal("Optimal"))
		Expect(resp.AchievedPoolSize).To(Equal(4))
		Expect(resp.StopReason).To(Equal("Exhausted"))
		Expect(resp.Partial).To(BeFalse())
		Expect(resp.Pool[0].SelectedIDs).To(Equal([]string{"A"}))
		Expect(resp.Pool[3].SelectedIDs).To(BeEmpty())
	})

	It("should expose solve metrics", func() {
		code, data := call(http.MethodGet, "/metrics", "", nil)
		Expect(code).To(Equal(http.StatusOK))
		Expect(string(data)).To(ContainSubstring(`portfolio_solves_total{status="Optimal"}`))
		Expect(string(data)).To(ContainSubstring(`portfolio_enumeration_stops_total{reason="Exhausted"}`))
	})
})
