// Package subgram — клиент API SubGram для проверки обязательных подписок.
// verdict.go описывает закрытую систему вердиктов: сырой JSON ответа
// разбирается ровно один раз на границе клиента, дальше вся логика
// работает только с Verdict.
package subgram

// Kind — категория вердикта оракула.
type Kind int

const (
	// KindOk — все задания спонсоров выполнены.
	KindOk Kind = iota
	// KindWarning — есть невыполненные подписки на спонсоров.
	KindWarning
	// KindGender — оракулу нужен пол пользователя.
	KindGender
	// KindAge — оракулу нужен возраст пользователя.
	KindAge
	// KindRegister — оракул требует пройти регистрацию по ссылке.
	KindRegister
	// KindError — ошибка на стороне SubGram (с сообщением).
	KindError
	// KindUnknown — оракул не смог распознать аккаунт. Антифрод-сигнал:
	// включает резервную проверку и разовую награду пригласившему.
	KindUnknown
	// KindNoResponse — транспортный сбой; мягкая ошибка, никогда
	// не сохраняется как «не верифицирован».
	KindNoResponse
)

func (k Kind) String() string {
	switch k {
	case KindOk:
		return "ok"
	case KindWarning:
		return "warning"
	case KindGender:
		return "gender"
	case KindAge:
		return "age"
	case KindRegister:
		return "register"
	case KindError:
		return "error"
	case KindUnknown:
		return "unknown"
	case KindNoResponse:
		return "no_response"
	}
	return "invalid"
}

// Sponsor — одно задание из ответа оракула.
type Sponsor struct {
	Link         string `json:"link"`
	ButtonText   string `json:"button_text"`
	ResourceName string `json:"resource_name"`
	AvailableNow bool   `json:"available_now"`
	Status       string `json:"status"`
}

// Verdict — разобранный ответ оракула на один запрос. Не персистится.
type Verdict struct {
	Kind    Kind
	Message string // для KindError

	// Для блокирующих вердиктов.
	Sponsors        []Sponsor
	RegistrationURL string

	// Token — идемпотентный ключ конкретного экземпляра ответа.
	// Генерируется при разборе: у SubGram нет собственного ID доставки,
	// а награда за «неизвестный аккаунт» должна начисляться не более
	// одного раза на ответ.
	Token string
}

// Blocking сообщает, требует ли вердикт показать блокирующее сообщение.
func (v *Verdict) Blocking() bool {
	switch v.Kind {
	case KindWarning, KindGender, KindAge, KindRegister:
		return true
	}
	return false
}
