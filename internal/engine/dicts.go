package engine

import "sort"

// Korean building blocks for names and addresses.
var (
	koLastNames  = []string{"김", "이", "박", "정", "배", "문", "노", "하", "변", "천", "도"}
	koFirstNames = []string{"건우", "은채", "태윤", "소율", "현서", "다인", "재민", "유나", "시온", "가람"}
	koCities     = []string{"서울", "세종", "창원", "포항", "제주", "춘천", "원주", "목포", "여수", "경주"}
	koDistricts  = []string{"중구", "동구", "서구", "남구", "북구", "수성구", "해운대구", "유성구"}
	koStreets    = []string{"중앙로", "시청로", "역전로", "대학로", "공원로", "항구로", "산업로", "문화로"}
)

// dictWords are the English keys of wordDict in a fixed order, so a seeded
// generator repeats itself.
var dictWords = func() []string {
	out := make([]string, 0, len(wordDict))
	for w := range wordDict {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}()

// wordDict pairs English words with a Korean translation. Text is drawn from
// its keys and translated for the Korean locale.
var wordDict = map[string]string{
	"Order": "주문", "Invoice": "송장", "Payment": "결제", "Refund": "환불",
	"Parcel": "소포", "Delivery": "배송", "Warehouse": "창고", "Store": "매장",
	"Customer": "고객", "Member": "회원", "Coupon": "쿠폰", "Gift": "선물",
	"Season": "계절", "Product": "상품", "Brand": "브랜드", "Review": "후기",
	"Bread": "빵", "Coffee": "커피", "Tea": "차", "Rice": "쌀",
	"Winter": "겨울", "Summer": "여름", "Morning": "아침", "Evening": "저녁",

	"Fresh": "신선한", "Special": "특별한", "Daily": "매일의", "Weekly": "주간",
	"Small": "작은", "Large": "큰", "Premium": "고급", "Simple": "간단한",
	"Warm": "따뜻한", "Cold": "차가운", "Quick": "신속한", "Local": "지역",
	"Green": "초록", "Yellow": "노란", "White": "하얀", "Black": "검은",
}
