package mcpserver

// RecordContract describes the JSON shape of an enriched record as returned
// by get_record and written to the batch output file.
const RecordContract = `# tramite Record Contract

Each record is one parliamentary initiative identified by its docket number
(` + "`" + `NNN/NNNNNN` + "`" + `, e.g. ` + "`" + `121/000001` + "`" + `).

## Fields

| key | type | notes |
|-----|------|-------|
| id | string | docket identifier, unique |
| type | string | initiative type as exported |
| subject | string | title text, whitespace collapsed |
| author | string | |
| presented_at, qualified_at | string | ISO-8601 date when parseable, raw text otherwise |
| status, result, procedure | string | free text; input to stage classification |
| committee, legislature | string | optional |
| bulletin_urls | string[] | official bulletin links |
| related, origin | string[] | raw cross-references |
| timeline | event[] | ` + "`" + `{event, start_date, end_date?, raw}` + "`" + ` derived from the procedure text |
| direct_relations | relation[] | ` + "`" + `{target, subtype}` + "`" + `, subtype ` + "`" + `related` + "`" + ` or ` + "`" + `origin` + "`" + `; only targets present in the batch |
| similar | match[] | ` + "`" + `{target, score}` + "`" + `, score in [0,1], descending |
| stage | string | see below |
| step | int | position 1-5 on the progression |
| stage_reason | string | signals found and the rule that fired |
| publication | object | gazette metadata when a law was matched |

## Stages

Rules are checked in a fixed order and the first whose signal is present decides:

1. approval: ` + "`" + `passed` + "`" + ` (4)
2. rejection: ` + "`" + `rejected` + "`" + ` (2)
3. withdrawal: ` + "`" + `withdrawn` + "`" + ` (1)
4. verified publication: ` + "`" + `published` + "`" + ` (5)
5. voting: ` + "`" + `voting` + "`" + ` (4)
6. committee: ` + "`" + `committee` + "`" + ` (3)
7. debate: ` + "`" + `debating` + "`" + ` (2)
8. closure: ` + "`" + `closed` + "`" + ` (1)
9. otherwise ` + "`" + `proposed` + "`" + ` (1)

An approval therefore wins over a rejection mentioned in the same text.

## Publication

` + "`" + `law_type` + "`" + `, ` + "`" + `law_number` + "`" + `, ` + "`" + `gazette_id` + "`" + ` (BOE-A-YYYY-N), ` + "`" + `gazette_date` + "`" + `, ` + "`" + `url` + "`" + `,
` + "`" + `confidence` + "`" + ` (high: verified URL, medium: date only, low: neither),
` + "`" + `method` + "`" + ` (` + "`" + `docket_in_subject` + "`" + `, ` + "`" + `identifier` + "`" + `, ` + "`" + `title_similarity` + "`" + `) and ` + "`" + `match_score` + "`" + ` for title matches.

## Edges

get_relations returns ` + "`" + `{source, target, kind, subtype?, score?}` + "`" + ` where kind is
` + "`" + `direct` + "`" + ` or ` + "`" + `similar` + "`" + `. Similarity edges are stored once per pair.
`
