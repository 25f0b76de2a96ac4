// Package language normalizes target language codes and provides the light
// heuristics used to skip text that needs no translation.
//
// Codes are accepted as BCP 47 tags ("zh-CN"), ISO 639 codes ("eng"), or
// English words ("german"). Detection is deliberately shallow: text is judged
// to already be in the target language only when the target uses a
// distinctive script and most letters are written in it.
package language
