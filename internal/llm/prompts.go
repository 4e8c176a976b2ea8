package llm

import (
	"fmt"
	"strings"
)

// outlineShape describes the JSON document shape every article prompt
// demands. Kept textual rather than a schema dump so the instructions stay
// readable in logs.
const outlineShape = `{
  "title": "string - the condition name",
  "subtitle": "string - a concise introductory phrase summarizing the condition",
  "sections": [
    {"heading": "string", "content": "string (markdown)"}
  ]
}`

// jsonOutputRules is appended to every prompt that must return strict JSON.
const jsonOutputRules = `Output Requirements:
- Return only the JSON object specified above.
- Output strict, valid JSON without any additional commentary or formatting.
- Do not include code block markers like triple backticks.`

// OutlinePrompt asks for a full knowledgebase article outline on a
// condition, with the fixed required heading set.
func OutlinePrompt(topic string, headings []string) string {
	quoted := make([]string, len(headings))
	for i, h := range headings {
		quoted[i] = fmt.Sprintf("%q", h)
	}

	return fmt.Sprintf(`You are a professional scientific writer tasked with developing a detailed and informative knowledgebase article outline on the condition: '%s'.

---
The output MUST be a JSON object with this structure:

%s

---

Detailed Instructions:

- **title**: The main heading of the article, which is the condition itself.
- **subtitle**: A concise introductory phrase summarizing the condition.
- **sections**: Ensure that all of these headings are included, in this order: %s.
- Maintain a professional yet approachable tone.
- Where possible, include statistics, research findings, or notable insights to make the article credible and informative.
- Use markdown bullet points for list-like sections (Key Facts, Symptoms, Risk Factors, Prevention, Home-Care).
- Where subtypes exist, include nested subheadings within the content using the "###" markdown header format.
- The "FAQs" section content must present 3 to 5 question-answer pairs as markdown, each question a "###" subheading followed by its answer.
- Leave the "References" section content empty; references are added in a later pass.

---

%s`, topic, outlineShape, strings.Join(quoted, ", "), jsonOutputRules)
}

// RefinePrompt asks the model to integrate local source material into an
// existing outline without citing the source documents themselves.
func RefinePrompt(topic, outlineJSON string, sources []string) string {
	return fmt.Sprintf(`You are a professional scientific writer tasked with integrating relevant reference material into an existing knowledgebase article (ARTICLE) on the condition: '%s'.

Goal:
Enhance the ARTICLE by incorporating additional information and insights from the provided source documents (SOURCES). Refine the ARTICLE while preserving its structure and integrity. **Importantly, do not directly cite, refer to, or mention the SOURCES anywhere in the output.** Only cite the original scientific research articles that are referenced within those documents if you choose to incorporate their information.

The output MUST be a JSON object with this structure:

%s

Task:
1. Review the ARTICLE and the SOURCES to identify areas where additional information, clarity, or updated data can be integrated.
2. Incorporate relevant data and insights into appropriate sections, retaining all existing content and structure unless updating with more accurate details.
3. Maintain the ARTICLE's professional tone. Add content to expand existing sections where relevant, for example additional FAQs.
4. Integrate only information that directly supports or enhances claims in the ARTICLE; do not repeat content already present.

---

%s

---

ARTICLE:
%s

SOURCES:
%s`, topic, outlineShape, jsonOutputRules, outlineJSON, strings.Join(sources, "\n\n"))
}

// QueryPrompt asks for section-targeted bibliographic search queries.
func QueryPrompt(outlineJSON string) string {
	return fmt.Sprintf(`You are tasked with generating search queries to find corroborating evidence for key claims in a knowledgebase article.
The goal is to identify relevant scientific papers to support and enhance the article, ensuring credibility and depth.

TASK:
- Review the provided outline of the knowledgebase article.
- Identify areas or claims that would benefit from further evidence or scientific backing.
- For each identified section, create a search query targeting relevant scientific papers or data.

REQUIREMENTS:
1. Return the search queries in strict JSON format: a list of objects, each with the fields 'section' and 'query'.
2. 'section' is the heading of the outline section the query corresponds to; 'query' is a specific search term designed to find relevant papers or abstracts.
3. Use simple, standalone search terms or phrases. Avoid logical operators like AND, OR, or quotation marks.

GUIDELINES:
- Tailor queries to address gaps in evidence or provide additional insights for key claims in the article.
- Ensure search terms are specific enough to yield meaningful results.
- Avoid overly generic queries that may return irrelevant data.

Example:
[
    {"section": "Overview", "query": "global prevalence of gout"},
    {"section": "Treatment", "query": "allopurinol urate lowering therapy outcomes"}
]

ARTICLE OUTLINE:
%s

IMPORTANT:
- Focus on generating precise and targeted queries to find corroborating evidence.
- Output the response as strict valid JSON without any additional commentary or formatting. Do not include code block markers like triple backticks.`, outlineJSON)
}

// IntegratePrompt asks the model to weave the supplied papers into the
// article with numbered inline citation markers. Papers are presented with
// fixed reference numbers that the model must use verbatim; final
// renumbering happens in the reference resolver.
func IntegratePrompt(topic, outlineJSON, papersJSON string) string {
	return fmt.Sprintf(`You are a professional scientific writer tasked with integrating relevant references into an existing knowledgebase article (ARTICLE) on the topic: '%s'.

Goal:
Refine and expand the ARTICLE by judiciously integrating references from the provided PAPERS JSON list. These references should support the article's claims, improve its accuracy, and enhance its authority.

The output MUST be a JSON object with this structure:

%s

Input:
1. ARTICLE: the existing content, in JSON format.
2. PAPERS: a JSON array of retrieved papers. Each entry includes:
   - 'ref': the fixed reference number for this paper. Cite it inline as [ref].
   - 'section': the ARTICLE section where the paper might be most relevant.
   - 'query': the search query that found the paper.
   - 'title', 'abstract', 'citation': the paper's metadata.

Tasks & Guidelines:
1. Examine each section to identify claims, statistics, or statements that could benefit from additional evidence. Use the 'section' and 'query' fields to locate the most relevant studies.
2. Use papers selectively, focusing on those that directly support or expand the claims in the ARTICLE. Avoid including references solely to increase citation count. Skip sections where no paper aligns with their content.
3. Cite inline using the paper's fixed 'ref' number in square brackets, e.g. [3] or [2,5]. Never invent numbers not present in PAPERS and never renumber them.
4. Maintain the ARTICLE's original structure and cohesive flow. Place citations at appropriate points to enhance readability and authority.
5. Summarize and incorporate key findings to strengthen claims without adding unnecessary complexity.
6. Leave the "References" section content empty; the reference list is assembled separately from your inline markers.

---

%s

---

ARTICLE:
%s

PAPERS:
%s`, topic, outlineShape, jsonOutputRules, outlineJSON, papersJSON)
}
