package engine

import "strings"

// Meaning is what a column holds, as far as its name and comment tell.
type Meaning string

const (
	MeaningNone        Meaning = ""
	MeaningPhone       Meaning = "phone"
	MeaningEmail       Meaning = "email"
	MeaningAddress     Meaning = "address"
	MeaningZipcode     Meaning = "zipcode"
	MeaningName        Meaning = "name"
	MeaningID          Meaning = "id"
	MeaningPassword    Meaning = "password"
	MeaningTitle       Meaning = "title"
	MeaningDescription Meaning = "description"
	MeaningDate        Meaning = "date"
	MeaningPrice       Meaning = "price"
	MeaningCount       Meaning = "count"
	MeaningYesNo       Meaning = "yesno"
	MeaningCountry     Meaning = "country"
	MeaningCity        Meaning = "city"
	MeaningDistrict    Meaning = "district"
	MeaningIP          Meaning = "ip"
	MeaningURL         Meaning = "url"
	MeaningYear        Meaning = "year"
)

// commentKeywords is checked in order; the first rule with a keyword found in
// the comment wins.
var commentKeywords = []struct {
	meaning  Meaning
	keywords []string
}{
	{MeaningPhone, []string{"전화", "휴대폰", "연락처", "핸드폰", "mobile", "phone"}},
	{MeaningEmail, []string{"이메일", "메일", "email", "mail"}},
	{MeaningAddress, []string{"주소", "거주지", "address"}},
	{MeaningZipcode, []string{"우편", "zip", "postal"}},
	{MeaningName, []string{"이름", "성명", "name"}},
	{MeaningID, []string{"아이디", "user_id"}},
	{MeaningPassword, []string{"비밀번호", "패스워드", "암호", "password"}},
	{MeaningTitle, []string{"제목", "타이틀", "title"}},
	{MeaningDescription, []string{"내용", "설명", "desc"}},
	{MeaningDate, []string{"날짜", "일시", "date", "time"}},
	{MeaningPrice, []string{"금액", "가격", "단가", "price", "cost"}},
	{MeaningCount, []string{"수량", "개수", "count", "qty"}},
	{MeaningYesNo, []string{"여부", "flag", "yn"}},
	{MeaningCountry, []string{"국가", "나라", "country"}},
	{MeaningCity, []string{"도시", "city"}},
	{MeaningIP, []string{"ip"}},
}

var abbreviations = map[string]string{
	"nm": "name", "dt": "date", "no": "number", "cd": "code",
	"desc": "description", "amt": "amount", "cnt": "count", "qty": "quantity",
	"addr": "address", "tel": "phone", "hp": "phone", "ph": "phone",
	"biz": "business", "pwd": "password", "passwd": "password", "pw": "password",
	"img": "image", "zip": "zipcode", "post": "zipcode",
	"msg": "message", "txt": "text", "tit": "title", "subj": "subject",
	"doc": "document", "usr": "user", "emp": "employee",
	"dept": "department", "grp": "group", "cat": "category",
	"loc": "location", "lat": "latitude", "lng": "longitude", "lon": "longitude",
	"st": "street", "prov": "province", "dist": "district",
	"bal": "balance", "rst": "result", "rslt": "result",
	"avg": "average", "mid": "id", "uid": "id", "pid": "id",

	"reg": "registered", "mod": "modified", "del": "deleted", "cre": "created",
	"upd": "updated", "yn": "yesno", "stat": "status", "sts": "status",
	"typ": "type", "val": "value", "ord": "order", "seq": "sequence",
	"is": "yesno", "use": "yesno", "flg": "flag",
}

// nameWords maps words of an expanded column name onto a meaning. Words are
// tried from the last one backwards, so user_name is a name and name_id an id.
var nameWords = map[string]Meaning{
	"phone": MeaningPhone, "mobile": MeaningPhone,
	"email": MeaningEmail, "mail": MeaningEmail,
	"address": MeaningAddress, "address1": MeaningAddress, "address2": MeaningAddress,
	"zipcode": MeaningZipcode, "postal": MeaningZipcode,
	"name": MeaningName, "first": MeaningName, "last": MeaningName,
	"firstname": MeaningName, "lastname": MeaningName,
	"id": MeaningID,
	"password": MeaningPassword,
	"title": MeaningTitle, "subject": MeaningTitle,
	"description": MeaningDescription, "content": MeaningDescription,
	"comment": MeaningDescription, "text": MeaningDescription, "message": MeaningDescription,
	"date": MeaningDate, "created": MeaningDate, "updated": MeaningDate, "modified": MeaningDate,
	"price": MeaningPrice, "amount": MeaningPrice, "cost": MeaningPrice, "balance": MeaningPrice,
	"count": MeaningCount, "quantity": MeaningCount,
	"yesno": MeaningYesNo, "flag": MeaningYesNo, "active": MeaningYesNo, "enabled": MeaningYesNo,
	"country": MeaningCountry,
	"city": MeaningCity,
	"district": MeaningDistrict,
	"ip": MeaningIP,
	"url": MeaningURL, "homepage": MeaningURL, "website": MeaningURL,
	"year": MeaningYear,
}

// AnalyzeMeaning guesses what a column holds. The comment is trusted first,
// then the column name with its abbreviations expanded.
func AnalyzeMeaning(column, comment string) Meaning {
	c := strings.ToLower(comment)
	if c != "" {
		for _, rule := range commentKeywords {
			for _, kw := range rule.keywords {
				if strings.Contains(c, kw) {
					return rule.meaning
				}
			}
		}
	}

	words := expandName(column)
	for i := len(words) - 1; i >= 0; i-- {
		if m, ok := nameWords[words[i]]; ok {
			return m
		}
	}
	return MeaningNone
}

// expandName splits a column name on underscores and expands known
// abbreviations.
func expandName(column string) []string {
	parts := strings.FieldsFunc(strings.ToLower(column), func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, p := range parts {
		if full, ok := abbreviations[p]; ok {
			parts[i] = full
		}
	}
	return parts
}
