package pubmed

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/medkb/kbgen/internal/paper"
)

// pubmedArticleSet mirrors the efetch XML structure, limited to the fields
// the pipeline extracts.
type pubmedArticleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	MedlineCitation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			Title    string `xml:"ArticleTitle"`
			Abstract struct {
				Text []string `xml:"AbstractText"`
			} `xml:"Abstract"`
			AuthorList struct {
				Authors []struct {
					LastName string `xml:"LastName"`
					ForeName string `xml:"ForeName"`
				} `xml:"Author"`
			} `xml:"AuthorList"`
			Journal struct {
				Title        string `xml:"Title"`
				JournalIssue struct {
					PubDate struct {
						Year        string `xml:"Year"`
						MedlineDate string `xml:"MedlineDate"`
					} `xml:"PubDate"`
				} `xml:"JournalIssue"`
			} `xml:"Journal"`
		} `xml:"Article"`
	} `xml:"MedlineCitation"`
	PubmedData struct {
		ArticleIDs []struct {
			IDType string `xml:"IdType,attr"`
			Value  string `xml:",chardata"`
		} `xml:"ArticleIdList>ArticleId"`
	} `xml:"PubmedData"`
}

// parseArticleSet converts efetch XML into normalized records.
func parseArticleSet(data []byte) ([]paper.Record, error) {
	var set pubmedArticleSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parsing efetch response: %w", err)
	}

	records := make([]paper.Record, 0, len(set.Articles))
	for _, a := range set.Articles {
		art := a.MedlineCitation.Article

		var authors []string
		for _, au := range art.AuthorList.Authors {
			if au.LastName == "" {
				continue
			}
			name := strings.TrimSpace(au.ForeName + " " + au.LastName)
			authors = append(authors, name)
		}

		var doi string
		for _, id := range a.PubmedData.ArticleIDs {
			if id.IDType == "doi" {
				doi = strings.TrimSpace(id.Value)
				break
			}
		}

		pmid := strings.TrimSpace(a.MedlineCitation.PMID)
		records = append(records, paper.Record{
			Source:   paper.SourcePubMed,
			DOI:      doi,
			SourceID: pmid,
			Title:    strings.TrimSpace(art.Title),
			Authors:  authors,
			Year:     parseYear(art.Journal.JournalIssue.PubDate.Year, art.Journal.JournalIssue.PubDate.MedlineDate),
			Venue:    strings.TrimSpace(art.Journal.Title),
			Abstract: strings.TrimSpace(strings.Join(art.Abstract.Text, " ")),
			URL:      "https://pubmed.ncbi.nlm.nih.gov/" + pmid + "/",
		})
	}
	return records, nil
}

// parseYear reads the publication year, falling back to the leading year
// of a MedlineDate like "2019 Nov-Dec".
func parseYear(year, medlineDate string) int {
	if y, err := strconv.Atoi(strings.TrimSpace(year)); err == nil {
		return y
	}
	fields := strings.Fields(medlineDate)
	if len(fields) > 0 {
		if y, err := strconv.Atoi(fields[0]); err == nil {
			return y
		}
	}
	return 0
}
