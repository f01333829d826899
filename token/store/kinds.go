package store

// Kind identifies the model a record belongs to. It is the first segment of the record key.
type Kind string

const (
	Session                          Kind = "Session"
	AccessToken                      Kind = "AccessToken"
	AuthorizationCode                Kind = "AuthorizationCode"
	RefreshToken                     Kind = "RefreshToken"
	DeviceCode                       Kind = "DeviceCode"
	ClientCredentials                Kind = "ClientCredentials"
	Client                           Kind = "Client"
	InitialAccessToken               Kind = "InitialAccessToken"
	RegistrationAccessToken          Kind = "RegistrationAccessToken"
	Interaction                      Kind = "Interaction"
	ReplayDetection                  Kind = "ReplayDetection"
	PushedAuthorizationRequest       Kind = "PushedAuthorizationRequest"
	Grant                            Kind = "Grant"
	BackchannelAuthenticationRequest Kind = "BackchannelAuthenticationRequest"
)

// Encoding is the storage shape of a record.
type Encoding int

const (
	// EncodingBlob stores the payload as a single JSON string value.
	EncodingBlob Encoding = iota
	// EncodingFieldMap stores the payload JSON in the "payload" field of a hash so that
	// other fields (consumed) can be written without touching it.
	EncodingFieldMap
)

type kindTraits struct {
	encoding  Encoding
	grantable bool
}

var kindTable = map[Kind]kindTraits{
	Session:                          {encoding: EncodingBlob},
	AccessToken:                      {encoding: EncodingBlob, grantable: true},
	AuthorizationCode:                {encoding: EncodingFieldMap, grantable: true},
	RefreshToken:                     {encoding: EncodingFieldMap, grantable: true},
	DeviceCode:                       {encoding: EncodingFieldMap, grantable: true},
	ClientCredentials:                {encoding: EncodingBlob},
	Client:                           {encoding: EncodingBlob},
	InitialAccessToken:               {encoding: EncodingBlob},
	RegistrationAccessToken:          {encoding: EncodingBlob},
	Interaction:                      {encoding: EncodingBlob},
	ReplayDetection:                  {encoding: EncodingBlob},
	PushedAuthorizationRequest:       {encoding: EncodingBlob},
	Grant:                            {encoding: EncodingBlob},
	BackchannelAuthenticationRequest: {encoding: EncodingFieldMap, grantable: true},
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kindTable[k]
	return ok
}

func (k Kind) Encoding() Encoding {
	return kindTable[k].encoding
}

// Consumable kinds can be marked consumed without being deleted.
func (k Kind) Consumable() bool {
	return kindTable[k].encoding == EncodingFieldMap
}

// Grantable kinds are listed in their grant's index and removed when the grant is revoked.
func (k Kind) Grantable() bool {
	return kindTable[k].grantable
}

// Kinds returns every known kind.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(kindTable))
	for k := range kindTable {
		kinds = append(kinds, k)
	}
	return kinds
}

// RecordKey returns the key of a record, "{kind}:{id}".
func RecordKey(kind Kind, id string) string {
	return string(kind) + ":" + id
}

// GrantKey returns the key of a grant's token list, "grant:{grantId}".
func GrantKey(grantID string) string {
	return "grant:" + grantID
}

// UserCodeKey returns the key of a device user code mapping, "userCode:{code}".
func UserCodeKey(userCode string) string {
	return "userCode:" + userCode
}

// SessionUIDKey returns the key of a session uid mapping, "uid:{uid}".
func SessionUIDKey(uid string) string {
	return "uid:" + uid
}
