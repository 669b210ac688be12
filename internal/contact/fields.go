package contact

import (
	"strconv"
)

// Field is the stable numeric code of a contact attribute. Codes are part of
// the API (column selection, sort fields, search terms) and must not change.
type Field int

const (
	FieldObjectID     Field = 1
	FieldCreatedBy    Field = 2
	FieldModifiedBy   Field = 3
	FieldCreationDate Field = 4
	FieldLastModified Field = 5
	FieldFolderID     Field = 20
	FieldContextID    Field = 30
	FieldCategories   Field = 100
	FieldPrivateFlag  Field = 101
	FieldColorLabel   Field = 102
	FieldAttachments  Field = 104
	FieldUID          Field = 223

	FieldDisplayName        Field = 500
	FieldGivenName          Field = 501
	FieldSurName            Field = 502
	FieldMiddleName         Field = 503
	FieldSuffix             Field = 504
	FieldTitle              Field = 505
	FieldStreetHome         Field = 506
	FieldPostalCodeHome     Field = 507
	FieldCityHome           Field = 508
	FieldStateHome          Field = 509
	FieldCountryHome        Field = 510
	FieldBirthday           Field = 511
	FieldMaritalStatus      Field = 512
	FieldNumberOfChildren   Field = 513
	FieldProfession         Field = 514
	FieldNickname           Field = 515
	FieldSpouseName         Field = 516
	FieldAnniversary        Field = 517
	FieldNote               Field = 518
	FieldDepartment         Field = 519
	FieldPosition           Field = 520
	FieldEmployeeType       Field = 521
	FieldRoomNumber         Field = 522
	FieldStreetBusiness     Field = 523
	FieldInternalUserID     Field = 524
	FieldPostalCodeBusiness Field = 525
	FieldCityBusiness       Field = 526
	FieldStateBusiness      Field = 527
	FieldCountryBusiness    Field = 528
	FieldNumberOfEmployees  Field = 529
	FieldSalesVolume        Field = 530
	FieldTaxID              Field = 531
	FieldCommercialRegister Field = 532
	FieldBranches           Field = 533
	FieldBusinessCategory   Field = 534
	FieldInfo               Field = 535
	FieldManagerName        Field = 536
	FieldAssistantName      Field = 537
	FieldStreetOther        Field = 538
	FieldCityOther          Field = 539
	FieldPostalCodeOther    Field = 540
	FieldCountryOther       Field = 541
	FieldTelephoneBusiness1 Field = 542
	FieldTelephoneBusiness2 Field = 543
	FieldFaxBusiness        Field = 544
	FieldTelephoneCallback  Field = 545
	FieldTelephoneCar       Field = 546
	FieldTelephoneCompany   Field = 547
	FieldTelephoneHome1     Field = 548
	FieldTelephoneHome2     Field = 549
	FieldFaxHome            Field = 550
	FieldCellularTelephone1 Field = 551
	FieldCellularTelephone2 Field = 552
	FieldTelephoneOther     Field = 553
	FieldFaxOther           Field = 554
	FieldEmail1             Field = 555
	FieldEmail2             Field = 556
	FieldEmail3             Field = 557
	FieldURL                Field = 558
	FieldTelephoneISDN      Field = 559
	FieldTelephonePager     Field = 560
	FieldTelephonePrimary   Field = 561
	FieldTelephoneRadio     Field = 562
	FieldTelephoneTelex     Field = 563
	FieldTelephoneTTYTDD    Field = 564
	FieldInstantMessenger1  Field = 565
	FieldInstantMessenger2  Field = 566
	FieldTelephoneIP        Field = 567
	FieldTelephoneAssistant Field = 568
	FieldCompany            Field = 569
	FieldImage              Field = 570
	FieldUserfield01        Field = 571
	FieldUserfield02        Field = 572
	FieldUserfield03        Field = 573
	FieldUserfield04        Field = 574
	FieldUserfield05        Field = 575
	FieldUserfield06        Field = 576
	FieldUserfield07        Field = 577
	FieldUserfield08        Field = 578
	FieldUserfield09        Field = 579
	FieldUserfield10        Field = 580
	FieldUserfield11        Field = 581
	FieldUserfield12        Field = 582
	FieldUserfield13        Field = 583
	FieldUserfield14        Field = 584
	FieldUserfield15        Field = 585
	FieldUserfield16        Field = 586
	FieldUserfield17        Field = 587
	FieldUserfield18        Field = 588
	FieldUserfield19        Field = 589
	FieldUserfield20        Field = 590
	FieldLinks              Field = 591
	FieldDistributionList   Field = 592
	FieldNumberOfDistList   Field = 594
	FieldNumberOfLinks      Field = 595
	FieldNumberOfImages     Field = 596
	FieldImageLastModified  Field = 597
	FieldStateOther         Field = 598
	FieldFileAs             Field = 599
	FieldImageContentType   Field = 601
	FieldMarkAsDistList     Field = 602
	FieldDefaultAddress     Field = 605
	FieldUseCount           Field = 608
)

func (f Field) String() string {
	if m := Lookup(f); m != nil {
		return m.Name
	}
	return "field(" + strconv.Itoa(int(f)) + ")"
}

// Kind selects how a mapped value is stored.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindBool
	KindTime
	// KindDerived fields live in side tables and are loaded by a secondary
	// query; they have no column in the contacts table.
	KindDerived
)

// Default column sets.
var (
	// ListFields is what folder listings return when the caller names no columns.
	ListFields = []Field{
		FieldObjectID, FieldFolderID, FieldCreatedBy, FieldLastModified, FieldPrivateFlag,
		FieldDisplayName, FieldGivenName, FieldSurName, FieldCompany,
		FieldEmail1, FieldEmail2, FieldEmail3, FieldMarkAsDistList, FieldNumberOfImages,
	}
	// SystemFields are always fetched so permission checks can run on any row.
	SystemFields = []Field{
		FieldObjectID, FieldFolderID, FieldCreatedBy, FieldPrivateFlag, FieldLastModified,
	}
)

func itoa(i int) string { return strconv.Itoa(i) }
